package feed

import (
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestComposeTrimsAndStampsSender(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m, ok := Compose("r1", Sender{ID: "u1", DisplayName: "Ada"}, "  hello \n", now)

	assert.True(t, ok)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, domain.UserID("u1"), m.SenderID)
	assert.Equal(t, "Ada", m.SenderName)
	assert.Equal(t, domain.RoomID("r1"), m.RoomID)
	assert.Equal(t, now, m.SentAt)
	assert.NotEmpty(t, m.ID)
}

func TestComposeRejectsBlankContent(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		_, ok := Compose("r1", Sender{ID: "u1"}, in, time.Now())
		assert.False(t, ok, "input %q", in)
	}
}

func TestComposeGeneratesDistinctIDs(t *testing.T) {
	a, _ := Compose("r1", Sender{ID: "u1"}, "x", time.Now())
	b, _ := Compose("r1", Sender{ID: "u1"}, "x", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAppendKeepsOrderAndDuplicates(t *testing.T) {
	f := New()
	f.Append(domain.ChatMessage{ID: "1", Content: "a"})
	f.Append(domain.ChatMessage{ID: "2", Content: "b"})
	f.Append(domain.ChatMessage{ID: "1", Content: "a"})

	list := f.List()
	assert.Len(t, list, 3)
	assert.Equal(t, "2", list[1].ID)

	list[0].Content = "mutated"
	assert.Equal(t, "a", f.List()[0].Content)
}

func TestSenderNameIsFixedAtSendTime(t *testing.T) {
	f := New()
	sender := Sender{ID: "u1", DisplayName: "Ada"}
	m, _ := Compose("r1", sender, "hi", time.Now())
	f.Append(m)

	sender.DisplayName = "Ada Lovelace"

	assert.Equal(t, "Ada", f.List()[0].SenderName)
}
