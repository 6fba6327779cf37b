package ws

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"reflexduel/internal/clock"
	"reflexduel/internal/domain"
	"reflexduel/internal/engine"
	"reflexduel/internal/logger"
	"reflexduel/internal/store"
)

func init() {
	logger.Discard()
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newHub(t *testing.T) (*Hub, *clockwork.FakeClock) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	clk := clockwork.NewFakeClock()
	e := engine.New(clock.New(clk), st, engine.Options{
		PresenceWindow: 3 * time.Second,
		Draw:           func() domain.Symbol { return domain.Rock },
	})
	return NewHub(e), clk
}

func connect(t *testing.T, h *Hub, player string) *Client {
	t.Helper()
	c := &Client{PlayerID: player, Style: "word", Send: make(chan []byte, 64), Hub: h, Done: make(chan struct{})}
	h.Register(c)
	if m := next(t, c); m.Type != MsgReady {
		t.Fatalf("first message = %s; want ready", m.Type)
	}
	return c
}

func next(t *testing.T, c *Client) inbound {
	t.Helper()
	select {
	case raw := <-c.Send:
		var m inbound
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		return m
	default:
		t.Fatalf("no message queued for %s", c.PlayerID)
	}
	return inbound{}
}

func nextState(t *testing.T, c *Client) StatePayload {
	t.Helper()
	m := next(t, c)
	if m.Type != MsgState {
		t.Fatalf("got %s %s; want state", m.Type, m.Payload)
	}
	var p StatePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func TestPlayAnswerFlow(t *testing.T) {
	h, clk := newHub(t)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")

	h.HandleMessage(a, []byte(`{"type":"play"}`))
	if m := next(t, a); m.Type != MsgQueued {
		t.Fatalf("alice got %s; want queued", m.Type)
	}

	h.HandleMessage(b, []byte(`{"type":"play"}`))
	sa, sb := nextState(t, a), nextState(t, b)
	if sa.MatchID == "" || sa.MatchID != sb.MatchID || sa.Opponent != "bob" {
		t.Fatalf("states = %+v / %+v", sa, sb)
	}
	if sb.TargetLabel != "rock" || len(sb.OptionLabels) != 2 {
		t.Fatalf("labels = %q %v", sb.TargetLabel, sb.OptionLabels)
	}

	h.HandleMessage(a, []byte(`{"type":"answer","value":"rock"}`))
	if m := next(t, a); m.Type != MsgError {
		t.Fatalf("invalid answer got %s", m.Type)
	}

	h.HandleMessage(a, []byte(`{"type":"answer","value":"paper"}`))
	sa, sb = nextState(t, a), nextState(t, b)
	if !sa.Answered || !sb.OpponentAnswered || sb.DeadlineInMs == nil {
		t.Fatalf("after answer: %+v / %+v", sa, sb)
	}

	clk.Advance(50 * time.Millisecond)
	h.HandleMessage(b, []byte(`{"type":"answer","value":"S"}`))
	sa, sb = nextState(t, a), nextState(t, b)
	if sa.MyScore != 1 || sb.TheirScore != 1 || sa.Round != 2 || sa.LastRound == nil {
		t.Fatalf("after round: %+v / %+v", sa, sb)
	}
}

func TestGiveUpPushesFinalState(t *testing.T) {
	h, _ := newHub(t)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	h.HandleMessage(a, []byte(`{"type":"play"}`))
	h.HandleMessage(b, []byte(`{"type":"play"}`))
	drain(a)
	drain(b)

	h.HandleMessage(b, []byte(`{"type":"give_up"}`))
	sa, sb := nextState(t, a), nextState(t, b)
	if !sa.Finished || sa.Winner != "alice" || sb.Reason != domain.FinishGiveUp {
		t.Fatalf("final = %+v / %+v", sa, sb)
	}
	if a.trackedMatch() != "" {
		t.Fatalf("finished match still tracked")
	}

	h.HandleMessage(b, []byte(`{"type":"give_up"}`))
	if m := next(t, b); m.Type != MsgError {
		t.Fatalf("give up without match got %s", m.Type)
	}
}

func TestPollResolvesDeadline(t *testing.T) {
	h, clk := newHub(t)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	h.HandleMessage(a, []byte(`{"type":"play"}`))
	h.HandleMessage(b, []byte(`{"type":"play"}`))
	h.HandleMessage(a, []byte(`{"type":"answer","value":"P"}`))
	drain(a)
	drain(b)

	clk.Advance(3 * time.Second)
	h.Poll(context.Background())

	sa, sb := nextState(t, a), nextState(t, b)
	if sa.Round != 2 || sa.MyScore != 1 || sb.TheirScore != 1 {
		t.Fatalf("after poll: %+v / %+v", sa, sb)
	}
}

func TestHeartbeatForfeitsAbsentOpponent(t *testing.T) {
	h, clk := newHub(t)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	h.HandleMessage(a, []byte(`{"type":"play"}`))
	h.HandleMessage(b, []byte(`{"type":"play"}`))
	h.HandleMessage(b, []byte(`{"type":"heartbeat","view":"lobby"}`))
	drain(a)
	drain(b)

	clk.Advance(4 * time.Second)
	h.HandleMessage(a, []byte(`{"type":"heartbeat"}`))
	sa := nextState(t, a)
	if !sa.Finished || sa.Winner != "alice" || sa.Reason != domain.FinishForfeit {
		t.Fatalf("heartbeat state = %+v", sa)
	}
}

func TestCancelAndUnknown(t *testing.T) {
	h, _ := newHub(t)
	a := connect(t, h, "alice")

	h.HandleMessage(a, []byte(`{"type":"play"}`))
	drain(a)
	h.HandleMessage(a, []byte(`{"type":"cancel"}`))
	m := next(t, a)
	var p QueuedPayload
	_ = json.Unmarshal(m.Payload, &p)
	if m.Type != MsgQueued || p.Queued {
		t.Fatalf("cancel reply = %s %s", m.Type, m.Payload)
	}

	h.HandleMessage(a, []byte(`{"type":"dance"}`))
	if m := next(t, a); m.Type != MsgError {
		t.Fatalf("unknown type got %s", m.Type)
	}
	h.HandleMessage(a, []byte(`not json`))
	if m := next(t, a); m.Type != MsgError {
		t.Fatalf("garbage got %s", m.Type)
	}
}

func TestUnregisterForgetsPresence(t *testing.T) {
	h, _ := newHub(t)
	first := connect(t, h, "alice")
	h.HandleMessage(first, []byte(`{"type":"heartbeat","view":"lobby"}`))

	second := connect(t, h, "alice")
	h.Unregister(first)
	if _, ok := h.engine.Presence().Get("alice"); !ok {
		t.Fatal("replaced connection dropped the live presence record")
	}

	h.Unregister(second)
	if _, ok := h.engine.Presence().Get("alice"); ok {
		t.Fatal("presence kept after the last connection left")
	}
	if h.client("alice") != nil {
		t.Fatal("client still registered")
	}
}

func TestPollerRunsOnClock(t *testing.T) {
	h, clk := newHub(t)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	h.HandleMessage(a, []byte(`{"type":"play"}`))
	h.HandleMessage(b, []byte(`{"type":"play"}`))
	h.HandleMessage(a, []byte(`{"type":"answer","value":"P"}`))
	drain(a)
	drain(b)

	stop, err := h.StartPoller(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = stop() }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		clk.Advance(time.Second)
		time.Sleep(20 * time.Millisecond)
		if m, _ := h.engine.Match(matchOf(h, "bob")); m.Round >= 2 {
			return
		}
	}
	t.Fatalf("poller never resolved the stalled round")
}

func matchOf(h *Hub, player string) string {
	id, _ := h.engine.MatchFor(player)
	return id
}
