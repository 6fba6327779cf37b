package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reflexduel/internal/domain"
	"reflexduel/internal/engine"
	"reflexduel/internal/game"
	"reflexduel/internal/logger"
	"reflexduel/internal/metrics"

	"github.com/go-co-op/gocron/v2"
)

// Hub connects players to the engine. It keeps one client per player (a new
// connection replaces the old one) and pushes match state to both players of
// a match whenever it changes.
type Hub struct {
	engine *engine.Engine
	log    *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(e *engine.Engine) *Hub {
	return &Hub{
		engine:  e,
		log:     logger.Component("ws"),
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.PlayerID]
	h.clients[c.PlayerID] = c
	h.mu.Unlock()

	if old != nil && old != c && old.Conn != nil {
		_ = old.Conn.Close()
	}

	ready := ReadyPayload{PlayerID: c.PlayerID}
	if id, ok := h.engine.MatchFor(c.PlayerID); ok {
		ready.MatchID = id
	}
	h.send(c, Message{Type: MsgReady, Payload: ready})
	if ready.MatchID != "" {
		h.pushView(c, ready.MatchID)
	}
	h.log.Debug("client registered", "player_id", c.PlayerID, "match_id", ready.MatchID)
}

// Unregister drops c unless it was already replaced by a newer connection.
// A dropped player also loses their presence record.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	current := h.clients[c.PlayerID] == c
	if current {
		delete(h.clients, c.PlayerID)
	}
	h.mu.Unlock()

	if current {
		h.engine.Presence().Forget(c.PlayerID)
	}
	h.log.Debug("client gone", "player_id", c.PlayerID, "replaced", !current)
}

func (h *Hub) client(player string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[player]
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// HandleMessage dispatches one inbound frame from c.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, "malformed message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case MsgPlay:
		id, err := h.engine.TryMatch(ctx, c.PlayerID)
		if h.failed(c, err) {
			return
		}
		if id == "" {
			h.send(c, Message{Type: MsgQueued, Payload: QueuedPayload{Queued: true}})
			return
		}
		h.PushMatch(id, c.PlayerID)

	case MsgCancel:
		if err := h.engine.Withdraw(ctx, c.PlayerID); h.failed(c, err) {
			return
		}
		h.send(c, Message{Type: MsgQueued, Payload: QueuedPayload{Queued: false}})

	case MsgAnswer:
		id, ok := h.engine.MatchFor(c.PlayerID)
		if !ok {
			h.sendError(c, domain.ErrMatchNotFound.Error())
			return
		}
		choice, ok := game.ParseSymbol(msg.Value)
		if !ok {
			h.sendError(c, domain.ErrInvalidChoice.Error())
			return
		}
		if _, err := h.engine.SubmitAnswer(ctx, id, c.PlayerID, choice); h.failed(c, err) {
			return
		}
		h.PushMatch(id, c.PlayerID)

	case MsgGiveUp:
		id, ok := h.engine.MatchFor(c.PlayerID)
		if !ok {
			h.sendError(c, domain.ErrMatchNotFound.Error())
			return
		}
		if err := h.engine.GiveUp(ctx, id, c.PlayerID); h.failed(c, err) {
			return
		}
		h.PushMatch(id, c.PlayerID)

	case MsgHeartbeat:
		h.heartbeat(ctx, c, msg.View)

	default:
		h.sendError(c, "unknown message type")
	}
}

func (h *Hub) heartbeat(ctx context.Context, c *Client, view string) {
	id, inMatch := h.engine.MatchFor(c.PlayerID)
	if view == "" {
		view = domain.ViewLobby
		if inMatch {
			view = domain.ViewMatch
		}
	}
	matchID := ""
	if view == domain.ViewMatch {
		matchID = id
	}
	h.engine.Heartbeat(c.PlayerID, view, matchID)
	if !inMatch {
		return
	}

	res, err := h.engine.ResolveDueOrForfeit(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrMatchNotFound) {
		h.log.Warn("poll failed", "match_id", id, "error", err)
		if !errors.Is(err, domain.ErrNotDurable) {
			return
		}
	}
	if res.Resolved || res.Forfeited {
		h.PushMatch(id, c.PlayerID)
		return
	}
	h.pushView(c, id)
}

// PushMatch sends the current view of a match to player and its opponent.
func (h *Hub) PushMatch(matchID, player string) {
	v, err := h.engine.View(matchID, player)
	if err != nil {
		h.log.Warn("view failed", "match_id", matchID, "player_id", player, "error", err)
		return
	}
	if c := h.client(player); c != nil {
		h.sendView(c, v)
	}
	if c := h.client(v.Opponent); c != nil {
		h.pushView(c, matchID)
	}
}

func (h *Hub) pushView(c *Client, matchID string) {
	v, err := h.engine.View(matchID, c.PlayerID)
	if err != nil {
		h.log.Warn("view failed", "match_id", matchID, "player_id", c.PlayerID, "error", err)
		return
	}
	h.sendView(c, v)
}

func (h *Hub) sendView(c *Client, v domain.MatchView) {
	p := StatePayload{MatchView: v}
	if v.Target != "" {
		p.TargetLabel = game.Render(v.Target, c.Style)
		for _, o := range v.Options {
			p.OptionLabels = append(p.OptionLabels, game.Render(o, c.Style))
		}
	}
	if v.Finished {
		c.track("")
	} else {
		c.track(v.MatchID)
	}
	h.send(c, Message{Type: MsgState, Payload: p})
}

// Poll advances every match a connected player is in and refreshes their
// views. Matches that finished since the last poll get one final push.
func (h *Hub) Poll(ctx context.Context) {
	polled := make(map[string]bool)
	for _, c := range h.snapshot() {
		id, ok := h.engine.MatchFor(c.PlayerID)
		if !ok {
			id = c.trackedMatch()
		}
		if id == "" {
			continue
		}
		if ok && !polled[id] {
			polled[id] = true
			if _, err := h.engine.ResolveDueOrForfeit(ctx, id); err != nil && !errors.Is(err, domain.ErrMatchNotFound) {
				h.log.Warn("poll failed", "match_id", id, "error", err)
			}
		}
		h.pushView(c, id)
	}
	metrics.OnlinePlayers.Set(float64(h.engine.Presence().Online(h.engine.Options().PresenceWindow)))
}

// StartPoller schedules Poll every interval on the engine's clock. The
// returned function stops the scheduler.
func (h *Hub) StartPoller(interval time.Duration) (func() error, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(h.engine.Clock().Clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval+5*time.Second)
			defer cancel()
			h.Poll(ctx)
		}),
		gocron.WithName("ws-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule poll: %w", err)
	}

	s.Start()
	h.log.Info("poller started", "interval", interval)
	return s.Shutdown, nil
}

// failed reports whether err stopped the operation, telling c about it. A
// change that only missed the state write is logged and treated as done.
func (h *Hub) failed(c *Client, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrNotDurable) {
		h.log.Warn("state not saved", "player_id", c.PlayerID, "error", err)
		return false
	}
	h.sendError(c, err.Error())
	return true
}

func (h *Hub) sendError(c *Client, msg string) {
	h.send(c, Message{Type: MsgError, Payload: ErrorPayload{Message: msg}})
}

func (h *Hub) send(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal ws message", "type", msg.Type, "error", err)
		return
	}
	select {
	case c.Send <- data:
	case <-c.Done:
	default:
		h.log.Warn("ws send buffer full, dropping message", "player_id", c.PlayerID, "type", msg.Type)
	}
}
