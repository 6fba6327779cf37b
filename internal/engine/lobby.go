package engine

import (
	"context"
	"strings"

	"reflexduel/internal/domain"
)

const maxNameLen = 64

// RegisterGuest creates an account with a fresh player id. Names are unique.
func (e *Engine) RegisterGuest(ctx context.Context, name string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return domain.Account{}, domain.ErrInvalidUsername
	}

	e.histMu.Lock()
	for _, a := range e.accounts {
		if strings.EqualFold(a.Name, name) {
			e.histMu.Unlock()
			return domain.Account{}, domain.ErrUsernameTaken
		}
	}
	acc := domain.Account{ID: e.clock.NewID(), Name: name, CreatedAt: e.clock.Now()}
	e.accounts[acc.ID] = acc
	e.histMu.Unlock()

	e.log.Info("guest registered", "player_id", acc.ID, "name", name)
	return acc, e.persist(ctx)
}

func (e *Engine) Account(playerID string) (domain.Account, bool) {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	a, ok := e.accounts[playerID]
	return a, ok
}

// TryMatch pairs player with a waiting opponent and returns the new match id,
// or parks player in the queue and returns "". Repeated calls by a waiting
// player do not add duplicates. A player already in a live match gets that
// match id back.
func (e *Engine) TryMatch(ctx context.Context, player string) (string, error) {
	id, err := e.queue.TryMatch(player, e.busy, e.startFunc("queue"))
	if err != nil {
		return "", err
	}
	if id == "" {
		e.log.Debug("player queued", "player_id", player)
	}
	return id, e.persist(ctx)
}

// Withdraw removes a waiting player from the queue.
func (e *Engine) Withdraw(ctx context.Context, player string) error {
	if !e.queue.Withdraw(player) {
		return nil
	}
	e.log.Debug("player left queue", "player_id", player)
	return e.persist(ctx)
}

func (e *Engine) Queued(player string) bool {
	return e.queue.Contains(player)
}

// SendInvite records a challenge from one player to a display name.
func (e *Engine) SendInvite(ctx context.Context, from, toName string) (domain.Invite, error) {
	toName = strings.TrimSpace(toName)
	if toName == "" || len(toName) > maxNameLen {
		return domain.Invite{}, domain.ErrInvalidUsername
	}
	if acc, ok := e.Account(from); ok && strings.EqualFold(acc.Name, toName) {
		return domain.Invite{}, domain.ErrSelfInvite
	}

	inv := domain.Invite{
		ID:        e.clock.NewID(),
		From:      from,
		To:        toName,
		CreatedAt: e.clock.Now(),
	}
	e.invites.Add(inv)
	e.log.Info("invite sent", "invite_id", inv.ID, "from", from, "to", toName)
	return inv, e.persist(ctx)
}

// PendingInvites lists invites addressed to name.
func (e *Engine) PendingInvites(name string) []domain.Invite {
	return e.invites.For(name)
}

// AcceptInvite starts a match between the inviter (player A) and the
// accepting player, bypassing the queue, and removes the invite. Only the
// account named in the invite may accept it. Both players are dropped from
// the queue if they were waiting there.
func (e *Engine) AcceptInvite(ctx context.Context, inviteID, accepting string) (string, error) {
	id, err := e.invites.Accept(inviteID, func(inv domain.Invite) (string, error) {
		if inv.From == accepting {
			return "", domain.ErrSelfInvite
		}
		acc, ok := e.Account(accepting)
		if !ok || !strings.EqualFold(acc.Name, inv.To) {
			return "", domain.ErrNotInvitee
		}
		return e.queue.Pair(inv.From, accepting, e.startFunc("invite"))
	})
	if err != nil {
		return "", err
	}
	return id, e.persist(ctx)
}
