// Package engine owns live matches: it pairs players, runs rounds, detects
// forfeits and archives finished matches. Each match has its own lock so
// unrelated matches progress independently; the queue and the registry are
// guarded separately. Deadlines and forfeits are evaluated lazily whenever an
// operation touches a match, plus an optional background sweep.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"reflexduel/internal/clock"
	"reflexduel/internal/domain"
	"reflexduel/internal/game"
	"reflexduel/internal/logger"
	"reflexduel/internal/matchmaking"
	"reflexduel/internal/metrics"
	"reflexduel/internal/presence"
	"reflexduel/internal/store"
)

// Options are the game rules.
type Options struct {
	AnswerWindow   time.Duration
	WinMargin      int
	PresenceWindow time.Duration
	// Draw picks the target of each new round. Defaults to a uniform draw.
	Draw func() domain.Symbol
}

func (o Options) withDefaults() Options {
	if o.AnswerWindow <= 0 {
		o.AnswerWindow = game.AnswerWindow
	}
	if o.WinMargin <= 0 {
		o.WinMargin = game.WinMargin
	}
	if o.PresenceWindow <= 0 {
		o.PresenceWindow = presence.MissedCycles * time.Second
	}
	if o.Draw == nil {
		o.Draw = game.DrawSymbol
	}
	return o
}

// HistorySink mirrors resolved rounds and finished matches to a read-side
// store. It is never on the critical path of live play.
type HistorySink interface {
	RecordRounds(ctx context.Context, entries map[string]domain.LogEntry) error
	RecordArchive(ctx context.Context, summary domain.ArchiveSummary) error
}

type liveMatch struct {
	mu     sync.Mutex
	m      domain.Match
	closed bool
}

type Engine struct {
	clock    *clock.Source
	store    store.Store
	sink     HistorySink
	opts     Options
	log      *slog.Logger
	presence *presence.Tracker
	queue    *matchmaking.Queue
	invites  *matchmaking.Invites

	// registry; never held while acquiring a match lock
	mu       sync.RWMutex
	matches  map[string]*liveMatch
	byPlayer map[string]string

	histMu   sync.RWMutex
	accounts map[string]domain.Account
	logs     map[string][]domain.LogEntry
	archives map[string][]domain.ArchiveSummary

	saveMu sync.Mutex
}

func New(src *clock.Source, st store.Store, opts Options) *Engine {
	if src == nil {
		src = clock.New(nil)
	}
	return &Engine{
		clock:    src,
		store:    st,
		opts:     opts.withDefaults(),
		log:      logger.Component("engine"),
		presence: presence.NewTracker(src.Clock),
		queue:    matchmaking.NewQueue(nil),
		invites:  matchmaking.NewInvites(nil),
		matches:  make(map[string]*liveMatch),
		byPlayer: make(map[string]string),
		accounts: make(map[string]domain.Account),
		logs:     make(map[string][]domain.LogEntry),
		archives: make(map[string][]domain.ArchiveSummary),
	}
}

// WithHistory attaches a read-side mirror.
func (e *Engine) WithHistory(sink HistorySink) *Engine {
	e.sink = sink
	return e
}

func (e *Engine) Options() Options {
	return e.opts
}

// Clock is the time and id source the engine runs on.
func (e *Engine) Clock() *clock.Source {
	return e.clock
}

func (e *Engine) Presence() *presence.Tracker {
	return e.presence
}

// Restore replaces the in-memory state with the stored document. Matches that
// already have an archive entry are dropped, finished matches that never made
// it to the archive are archived now, and queued players who are in a live
// match are dequeued.
func (e *Engine) Restore(ctx context.Context) error {
	st, err := e.store.Load(ctx)
	if err != nil {
		return err
	}

	archived := make(map[string]bool)
	for _, list := range st.Archives {
		for _, a := range list {
			archived[a.MatchID] = true
		}
	}

	e.histMu.Lock()
	e.accounts = st.Accounts
	e.logs = st.Logs
	e.archives = st.Archives
	e.histMu.Unlock()

	var finished []*liveMatch
	e.mu.Lock()
	e.matches = make(map[string]*liveMatch, len(st.Matches))
	e.byPlayer = make(map[string]string, 2*len(st.Matches))
	for id, m := range st.Matches {
		if archived[id] {
			continue
		}
		lm := &liveMatch{m: m}
		e.matches[id] = lm
		for _, p := range m.Players {
			e.byPlayer[p] = id
		}
		if m.Finished() {
			finished = append(finished, lm)
		}
	}
	queue := slices.DeleteFunc(slices.Clone(st.Queue), func(p string) bool {
		_, busy := e.byPlayer[p]
		return busy
	})
	live := len(e.matches)
	e.mu.Unlock()

	e.queue = matchmaking.NewQueue(queue)
	e.invites = matchmaking.NewInvites(st.Invites)

	now := e.clock.Now()
	for _, lm := range finished {
		lm.mu.Lock()
		e.archiveLocked(lm, now)
		lm.mu.Unlock()
	}

	metrics.LiveMatches.Set(float64(live - len(finished)))
	metrics.QueueLength.Set(float64(len(queue)))
	e.log.Info("state restored", "live_matches", live-len(finished), "queued", len(queue), "invites", len(st.Invites))

	if len(finished) > 0 || len(queue) != len(st.Queue) {
		return e.persist(ctx)
	}
	return nil
}

func (e *Engine) lookup(matchID string) (*liveMatch, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lm, ok := e.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return lm, nil
}

func (e *Engine) busy(player string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byPlayer[player]
	return id, ok
}

// startFunc creates and registers a match. It runs under the queue lock.
func (e *Engine) startFunc(source string) matchmaking.StartFunc {
	return func(a, b string) (string, error) {
		if a == b {
			return "", domain.ErrSelfInvite
		}
		now := e.clock.Now()

		e.mu.Lock()
		defer e.mu.Unlock()
		for _, p := range []string{a, b} {
			if _, ok := e.byPlayer[p]; ok {
				return "", fmt.Errorf("%s: %w", p, domain.ErrAlreadyInMatch)
			}
		}

		m := domain.Match{
			ID:        e.clock.NewID(),
			Players:   [2]string{a, b},
			Round:     1,
			Current:   game.NewRound(e.opts.Draw(), now),
			CreatedAt: now,
		}
		e.matches[m.ID] = &liveMatch{m: m}
		e.byPlayer[a] = m.ID
		e.byPlayer[b] = m.ID

		metrics.MatchesStarted.WithLabelValues(source).Inc()
		metrics.LiveMatches.Set(float64(len(e.matches)))
		e.log.Info("match started", "match_id", m.ID, "player_a", a, "player_b", b, "source", source)
		return m.ID, nil
	}
}

// persist writes the whole state document. Writes are serialized; each one
// snapshots the latest state, so the last write always reflects every
// completed mutation.
func (e *Engine) persist(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	st := e.snapshot()
	started := time.Now()
	err := e.store.Save(ctx, st)

	result := "ok"
	if err != nil {
		result = "error"
		e.log.Error("state write failed", "error", err)
	}
	metrics.StoreWrites.WithLabelValues(result).Observe(time.Since(started).Seconds())
	if err != nil {
		return fmt.Errorf("%w: persist state: %w", domain.ErrNotDurable, err)
	}
	return nil
}

func (e *Engine) snapshot() *domain.State {
	st := domain.NewState()

	e.mu.RLock()
	lms := make([]*liveMatch, 0, len(e.matches))
	for _, lm := range e.matches {
		lms = append(lms, lm)
	}
	e.mu.RUnlock()

	for _, lm := range lms {
		lm.mu.Lock()
		if !lm.closed {
			st.Matches[lm.m.ID] = lm.m.Clone()
		}
		lm.mu.Unlock()
	}

	st.Queue = e.queue.Snapshot()
	st.Invites = e.invites.Snapshot()
	metrics.QueueLength.Set(float64(len(st.Queue)))

	e.histMu.RLock()
	for id, a := range e.accounts {
		st.Accounts[id] = a
	}
	for p, l := range e.logs {
		st.Logs[p] = slices.Clone(l)
	}
	for p, l := range e.archives {
		st.Archives[p] = slices.Clone(l)
	}
	e.histMu.RUnlock()

	st.Normalize()
	return st
}

// mirror runs fn against the history sink in the background.
func (e *Engine) mirror(what string, fn func(ctx context.Context, sink HistorySink) error) {
	if e.sink == nil {
		return
	}
	sink := e.sink
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx, sink); err != nil {
			e.log.Warn("history mirror failed", "what", what, "error", err)
		}
	}()
}
