package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRosterView(t *testing.T) {
	self := domain.NewParticipant("self-0001", "Ada", true)
	bob := domain.NewParticipant("bob-000002", "Bob", false)
	bob.IsMuted = false
	cy := domain.NewParticipant("cy", "Cy", false)

	out := RosterView([]domain.Participant{self, bob, cy}, "self-0001", map[domain.UserID]core.LinkState{
		"bob-000002": core.LinkConnected,
	})

	assert.Contains(t, out, "Participants (3)")
	assert.Contains(t, out, "Ada (you)")
	assert.Contains(t, out, "bob-0000")
	assert.NotContains(t, out, "bob-000002")
	assert.Contains(t, out, core.LinkConnected.String())
	assert.Contains(t, out, "none")
	assert.Contains(t, out, IconHost)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(core.Notice{Severity: core.SeverityError, Title: "Message Not Sent", Description: "Failed to send message."})
	c.Message(domain.ChatMessage{SenderID: "b", SenderName: "Bob", Content: "hello", SentAt: time.Now()}, "a")
	c.Error(errors.New("boom"))
	c.Info("joined")

	out := buf.String()
	assert.Contains(t, out, "Message Not Sent")
	assert.Contains(t, out, "Failed to send message.")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "joined")
}
