package presence

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"reflexduel/internal/domain"
)

// MissedCycles is how many heartbeat intervals may pass before a player is
// considered gone.
const MissedCycles = 3

// Tracker records the last heartbeat of every player. Records are in-memory
// only.
type Tracker struct {
	clock   clockwork.Clock
	mu      sync.RWMutex
	records map[string]domain.PresenceRecord
}

func NewTracker(clock clockwork.Clock) *Tracker {
	return &Tracker{
		clock:   clock,
		records: make(map[string]domain.PresenceRecord),
	}
}

// Heartbeat marks player as seen now, on the given view and match.
func (t *Tracker) Heartbeat(player, view, matchID string) domain.PresenceRecord {
	rec := domain.PresenceRecord{
		PlayerID: player,
		LastSeen: t.clock.Now(),
		View:     view,
		MatchID:  matchID,
	}

	t.mu.Lock()
	t.records[player] = rec
	t.mu.Unlock()
	return rec
}

func (t *Tracker) Get(player string) (domain.PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[player]
	return rec, ok
}

// IsActive reports whether player was seen within window and, when given,
// is on requiredView looking at requiredMatchID. A player never seen is not
// active.
func (t *Tracker) IsActive(player string, window time.Duration, requiredView, requiredMatchID string) bool {
	rec, ok := t.Get(player)
	if !ok {
		return false
	}
	if t.clock.Since(rec.LastSeen) > window {
		return false
	}
	if requiredView != "" && rec.View != requiredView {
		return false
	}
	if requiredMatchID != "" && rec.MatchID != requiredMatchID {
		return false
	}
	return true
}

// Forget drops a player's record.
func (t *Tracker) Forget(player string) {
	t.mu.Lock()
	delete(t.records, player)
	t.mu.Unlock()
}

// Online counts players seen within window.
func (t *Tracker) Online(window time.Duration) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rec := range t.records {
		if t.clock.Since(rec.LastSeen) <= window {
			n++
		}
	}
	return n
}
