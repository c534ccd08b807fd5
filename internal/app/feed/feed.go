// Package feed keeps the append-only chat log of a room session.
package feed

import (
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
)

// Feed is an ordered, append-only message log. Ids are expected unique but
// are not used to deduplicate. Not safe for concurrent use.
type Feed struct {
	entries []domain.ChatMessage
}

func New() *Feed { return &Feed{} }

func (f *Feed) Append(m domain.ChatMessage) {
	f.entries = append(f.entries, m)
}

func (f *Feed) Len() int { return len(f.entries) }

// List returns a copy of the log in arrival order.
func (f *Feed) List() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(f.entries))
	copy(out, f.entries)
	return out
}

// Sender is the identity stamped onto an outgoing message at send time.
type Sender struct {
	ID          domain.UserID
	DisplayName string
}

// Compose builds an outgoing message. It reports false when the trimmed
// content is empty, in which case nothing must be sent.
func Compose(room domain.RoomID, from Sender, content string, now time.Time) (domain.ChatMessage, bool) {
	text := strings.TrimSpace(content)
	if text == "" {
		return domain.ChatMessage{}, false
	}
	return domain.ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     room,
		SenderID:   from.ID,
		SenderName: from.DisplayName,
		Content:    text,
		SentAt:     now,
	}, true
}
