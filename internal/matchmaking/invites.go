package matchmaking

import (
	"slices"
	"strings"
	"sync"

	"reflexduel/internal/domain"
)

// Invites keeps pending direct challenges. They stay pending until accepted.
type Invites struct {
	mu      sync.Mutex
	pending []domain.Invite
}

func NewInvites(pending []domain.Invite) *Invites {
	return &Invites{pending: slices.Clone(pending)}
}

func (b *Invites) Add(inv domain.Invite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, inv)
}

// For returns the invites addressed to the given display name, oldest first.
// Names compare case-insensitively, like account names.
func (b *Invites) For(name string) []domain.Invite {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.Invite
	for _, inv := range b.pending {
		if strings.EqualFold(inv.To, name) {
			out = append(out, inv)
		}
	}
	return out
}

// Accept runs start for the invite with the given id and removes the invite
// only if start succeeds, so acceptance and match creation are one step.
func (b *Invites) Accept(id string, start func(domain.Invite) (string, error)) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.pending, func(inv domain.Invite) bool { return inv.ID == id })
	if i < 0 {
		return "", domain.ErrInviteNotFound
	}
	matchID, err := start(b.pending[i])
	if err != nil {
		return "", err
	}
	b.pending = slices.Delete(b.pending, i, i+1)
	return matchID, nil
}

func (b *Invites) Snapshot() []domain.Invite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.pending)
}
