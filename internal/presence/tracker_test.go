package presence

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"reflexduel/internal/domain"
)

func TestIsActive(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tr := NewTracker(clk)
	window := MissedCycles * time.Second

	if tr.IsActive("a", window, "", "") {
		t.Fatalf("unknown player is active")
	}

	tr.Heartbeat("a", domain.ViewMatch, "m1")
	cases := []struct {
		name    string
		advance time.Duration
		view    string
		match   string
		want    bool
	}{
		{"fresh, no filter", 0, "", "", true},
		{"fresh, right match", 0, domain.ViewMatch, "m1", true},
		{"wrong view", 0, domain.ViewLobby, "", false},
		{"wrong match", 0, domain.ViewMatch, "m2", false},
		{"at the window edge", window, domain.ViewMatch, "m1", true},
		{"past the window", time.Millisecond, domain.ViewMatch, "m1", false},
	}

	for _, tc := range cases {
		clk.Advance(tc.advance)
		if got := tr.IsActive("a", window, tc.view, tc.match); got != tc.want {
			t.Fatalf("%s: IsActive = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestHeartbeatOverwrites(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tr := NewTracker(clk)

	tr.Heartbeat("a", domain.ViewMatch, "m1")
	clk.Advance(time.Second)
	rec := tr.Heartbeat("a", domain.ViewLobby, "")

	got, ok := tr.Get("a")
	if !ok || got != rec || got.View != domain.ViewLobby || got.MatchID != "" {
		t.Fatalf("record = %+v", got)
	}

	tr.Heartbeat("b", domain.ViewStats, "")
	clk.Advance(2 * time.Second)
	if n := tr.Online(2 * time.Second); n != 2 {
		t.Fatalf("Online = %d; want 2", n)
	}
	tr.Forget("a")
	if _, ok := tr.Get("a"); ok {
		t.Fatalf("record not forgotten")
	}
}
