package matchmaking

import (
	"slices"
	"sync"
)

// StartFunc creates a match with a as player A and b as player B.
type StartFunc func(a, b string) (string, error)

// BusyFunc reports the live match a player is already in, if any.
type BusyFunc func(player string) (string, bool)

// Queue holds players waiting for an opponent. Pairing and match creation
// happen under one lock so a paired player can never be re-queued before its
// match is registered.
type Queue struct {
	mu      sync.Mutex
	waiting []string
}

func NewQueue(waiting []string) *Queue {
	return &Queue{waiting: slices.Clone(waiting)}
}

// TryMatch pairs player with the longest-waiting other player and returns the
// new match id, the waiting player becoming player A. With nobody to pair
// with, player is parked (at most once) and "" is returned. A player already
// in a live match gets that match back and is never queued.
func (q *Queue) TryMatch(player string, busy BusyFunc, start StartFunc) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := busy(player); ok {
		q.remove(player)
		return id, nil
	}

	for _, w := range q.waiting {
		if w == player {
			continue
		}
		id, err := start(w, player)
		if err != nil {
			return "", err
		}
		q.remove(w, player)
		return id, nil
	}

	if !slices.Contains(q.waiting, player) {
		q.waiting = append(q.waiting, player)
	}
	return "", nil
}

// Pair starts a match between a and b regardless of queue order and drops
// both from the queue.
func (q *Queue) Pair(a, b string, start StartFunc) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, err := start(a, b)
	if err != nil {
		return "", err
	}
	q.remove(a, b)
	return id, nil
}

// Withdraw removes player from the queue. It reports whether it was queued.
func (q *Queue) Withdraw(player string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(player)
}

func (q *Queue) Contains(player string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Contains(q.waiting, player)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Snapshot returns a copy of the waiting list in queue order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.waiting)
}

func (q *Queue) remove(players ...string) bool {
	n := len(q.waiting)
	q.waiting = slices.DeleteFunc(q.waiting, func(w string) bool {
		return slices.Contains(players, w)
	})
	return len(q.waiting) != n
}
