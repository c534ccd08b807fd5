package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Console serializes everything the client prints. Notices arrive from the
// session loop while the input loop echoes commands.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ core.Notifier = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(n core.Notice) {
	icon, style := IconInfo, MutedStyle
	switch n.Severity {
	case core.SeverityWarning:
		icon, style = IconWarning, WarningStyle
	case core.SeverityError:
		icon, style = IconError, ErrorStyle
	}
	line := fmt.Sprintf("%s %s", icon, style.Render(n.Title))
	if n.Description != "" {
		line += " " + MutedStyle.Render(n.Description)
	}
	c.Println(line)
}

// Message prints one chat line; own messages are tinted differently.
func (c *Console) Message(m domain.ChatMessage, self domain.UserID) {
	who := PeerStyle.Render(m.SenderName)
	if m.SenderID == self {
		who = SelfStyle.Render(m.SenderName)
	}
	c.Println(fmt.Sprintf("%s %s: %s", MutedStyle.Render(m.SentAt.Local().Format(time.Kitchen)), who, m.Content))
}

func (c *Console) Println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	PrintError(c.out, err.Error())
}

func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	PrintSuccess(c.out, msg)
}

func (c *Console) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	PrintInfo(c.out, msg)
}
