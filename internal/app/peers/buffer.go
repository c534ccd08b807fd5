package peers

import (
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// pending holds negotiation messages that arrived before their link existed,
// which happens when signaling outruns roster propagation.
type pending struct {
	ttl   time.Duration
	limit int
	now   func() time.Time
	byID  map[domain.UserID][]pendingSignal
}

type pendingSignal struct {
	at      time.Time
	deliver func()
}

func newPending(ttl time.Duration, limit int, now func() time.Time) *pending {
	return &pending{ttl: ttl, limit: limit, now: now, byID: make(map[domain.UserID][]pendingSignal)}
}

// push keeps at most limit signals per peer, dropping the oldest.
func (p *pending) push(id domain.UserID, deliver func()) {
	if p.ttl <= 0 {
		return
	}
	q := append(p.byID[id], pendingSignal{at: p.now(), deliver: deliver})
	if len(q) > p.limit {
		q = q[len(q)-p.limit:]
	}
	p.byID[id] = q
}

// take removes and returns the unexpired signals for id, oldest first.
func (p *pending) take(id domain.UserID) []func() {
	q := p.byID[id]
	delete(p.byID, id)
	cutoff := p.now().Add(-p.ttl)
	out := make([]func(), 0, len(q))
	for _, s := range q {
		if s.at.After(cutoff) {
			out = append(out, s.deliver)
		}
	}
	return out
}

func (p *pending) drop(id domain.UserID) { delete(p.byID, id) }

func (p *pending) reset() { p.byID = make(map[domain.UserID][]pendingSignal) }

func (p *pending) len(id domain.UserID) int { return len(p.byID[id]) }
