package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"reflexduel/internal/clock"
	"reflexduel/internal/domain"
	"reflexduel/internal/engine"
	httpserver "reflexduel/internal/http"
	"reflexduel/internal/http/handlers"
	"reflexduel/internal/logger"
	"reflexduel/internal/repository"
	"reflexduel/internal/service"
	"reflexduel/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	service.InitJWT("handlers-test-secret")
}

type stubHistory struct {
	err error
}

func (s stubHistory) Stats(_ context.Context, playerID string, _ time.Time) (*repository.PlayerStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &repository.PlayerStats{PlayerID: playerID, Matches: 3, Wins: 2, Losses: 1}, nil
}

func (s stubHistory) Leaderboard(_ context.Context, _ time.Time, _ int) ([]repository.LeaderboardRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []repository.LeaderboardRow{{PlayerID: "p1", Wins: 4, Matches: 5}}, nil
}

func (s stubHistory) RecentRounds(_ context.Context, _ string, _ int) ([]domain.LogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.LogEntry{{MatchID: "m1", Round: 1, Target: domain.Rock, Outcome: domain.OutcomeWin}}, nil
}

type server struct {
	t   *testing.T
	r   *gin.Engine
	e   *engine.Engine
	clk *clockwork.FakeClock
}

func newServer(t *testing.T, history handlers.HistoryReader) *server {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	return newServerOn(t, history, st)
}

func newServerOn(t *testing.T, history handlers.HistoryReader, st store.Store) *server {
	t.Helper()
	clk := clockwork.NewFakeClock()
	e := engine.New(clock.New(clk), st, engine.Options{
		AnswerWindow:   3 * time.Second,
		WinMargin:      5,
		PresenceWindow: 3 * time.Second,
		Draw:           func() domain.Symbol { return domain.Rock },
	})

	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		Engine:           e,
		Health:           handlers.NewHealthHandler(st, nil, e.LiveCount, "test"),
		History:          history,
		APIRateLimit:     1000,
		APIRateWindow:    time.Minute,
		AnswerRateLimit:  1000,
		AnswerRateWindow: time.Minute,
	})
	return &server{t: t, r: r, e: e, clk: clk}
}

func (s *server) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

// guest registers name and returns its token and player id.
func (s *server) guest(name string) (string, string) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/v1/guest", "", map[string]string{"name": name})
	if code != http.StatusCreated {
		s.t.Fatalf("guest %s: status %d body %v", name, code, body)
	}
	return body["token"].(string), body["player_id"].(string)
}

func TestGuestValidation(t *testing.T) {
	s := newServer(t, nil)
	s.guest("alice")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing name", map[string]string{}, http.StatusBadRequest},
		{"blank name", map[string]string{"name": "   "}, http.StatusBadRequest},
		{"taken name", map[string]string{"name": "ALICE"}, http.StatusConflict},
		{"fresh name", map[string]string{"name": "bob"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := s.do(http.MethodPost, "/api/v1/guest", "", tt.body); code != tt.want {
				t.Fatalf("status %d; want %d (%v)", code, tt.want, body)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, nil)
	if code, _ := s.do(http.MethodGet, "/api/v1/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/v1/me", "garbage", nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", code)
	}
}

func TestQueueAndPlayRound(t *testing.T) {
	s := newServer(t, nil)
	tokA, idA := s.guest("alice")
	tokB, _ := s.guest("bob")
	tokC, _ := s.guest("carol")

	code, body := s.do(http.MethodPost, "/api/v1/queue", tokA, nil)
	if code != http.StatusAccepted || body["queued"] != true {
		t.Fatalf("first enqueue: %d %v", code, body)
	}
	code, body = s.do(http.MethodPost, "/api/v1/queue", tokB, nil)
	if code != http.StatusOK {
		t.Fatalf("second enqueue: %d %v", code, body)
	}
	matchID := body["match_id"].(string)

	code, body = s.do(http.MethodGet, "/api/v1/matches/current", tokA, nil)
	if code != http.StatusOK || body["match"] == nil {
		t.Fatalf("current match: %d %v", code, body)
	}
	view := body["match"].(map[string]any)
	if view["target"] != "R" || view["you"] != idA {
		t.Fatalf("view = %v", view)
	}

	answer := "/api/v1/matches/" + matchID + "/answer"
	errCases := []struct {
		name  string
		path  string
		token string
		value string
		want  int
	}{
		{"invalid symbol", answer, tokA, "lizard", http.StatusBadRequest},
		{"target itself", answer, tokA, "rock", http.StatusBadRequest},
		{"outsider", answer, tokC, "paper", http.StatusForbidden},
		{"unknown match", "/api/v1/matches/nope/answer", tokA, "paper", http.StatusNotFound},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := s.do(http.MethodPost, tt.path, tt.token, map[string]string{"value": tt.value}); code != tt.want {
				t.Fatalf("status %d; want %d (%v)", code, tt.want, body)
			}
		})
	}

	code, body = s.do(http.MethodPost, answer, tokA, map[string]string{"value": "paper"})
	if code != http.StatusOK || body["result"].(map[string]any)["status"] != "waiting" {
		t.Fatalf("A answer: %d %v", code, body)
	}
	s.clk.Advance(200 * time.Millisecond)
	code, body = s.do(http.MethodPost, answer, tokB, map[string]string{"value": "S"})
	if code != http.StatusOK || body["result"].(map[string]any)["status"] != "resolved" {
		t.Fatalf("B answer: %d %v", code, body)
	}
	if got := body["match"].(map[string]any)["their_score"]; got != float64(1) {
		t.Fatalf("B sees A score %v; want 1", got)
	}

	code, body = s.do(http.MethodGet, "/api/v1/me/logs?limit=10", tokA, nil)
	if code != http.StatusOK || len(body["logs"].([]any)) != 1 {
		t.Fatalf("logs: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodGet, "/api/v1/me/logs?limit=0", tokA, nil); code != http.StatusBadRequest {
		t.Fatalf("limit=0: %d", code)
	}
}

func TestGiveUpThenFinished(t *testing.T) {
	s := newServer(t, nil)
	tokA, _ := s.guest("alice")
	tokB, idB := s.guest("bob")
	s.do(http.MethodPost, "/api/v1/queue", tokA, nil)
	_, body := s.do(http.MethodPost, "/api/v1/queue", tokB, nil)
	matchID := body["match_id"].(string)

	code, body := s.do(http.MethodPost, "/api/v1/matches/"+matchID+"/give-up", tokA, nil)
	if code != http.StatusOK || body["finished"] != true || body["winner"] != idB {
		t.Fatalf("give up: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodPost, "/api/v1/matches/"+matchID+"/give-up", tokB, nil); code != http.StatusConflict {
		t.Fatalf("second give up: %d; want 409", code)
	}
	code, body = s.do(http.MethodGet, "/api/v1/me/archives", tokB, nil)
	if code != http.StatusOK || len(body["archives"].([]any)) != 1 {
		t.Fatalf("archives: %d %v", code, body)
	}
}

func TestInviteEndpoints(t *testing.T) {
	s := newServer(t, nil)
	tokA, _ := s.guest("alice")
	tokB, _ := s.guest("bob")

	if code, _ := s.do(http.MethodPost, "/api/v1/invites", tokA, map[string]string{"to": "alice"}); code != http.StatusBadRequest {
		t.Fatalf("self invite: %d", code)
	}
	code, body := s.do(http.MethodPost, "/api/v1/invites", tokA, map[string]string{"to": "bob"})
	if code != http.StatusCreated {
		t.Fatalf("invite: %d %v", code, body)
	}

	tokM, _ := s.guest("mallory")
	code, body = s.do(http.MethodGet, "/api/v1/invites", tokB, nil)
	invites := body["invites"].([]any)
	if code != http.StatusOK || len(invites) != 1 {
		t.Fatalf("pending: %d %v", code, body)
	}
	inviteID := invites[0].(map[string]any)["id"].(string)

	if code, _ := s.do(http.MethodPost, "/api/v1/invites/"+inviteID+"/accept", tokM, nil); code != http.StatusForbidden {
		t.Fatalf("third-party accept: %d; want 403", code)
	}
	code, body = s.do(http.MethodPost, "/api/v1/invites/"+inviteID+"/accept", tokB, nil)
	if code != http.StatusOK || body["match_id"] == "" {
		t.Fatalf("accept: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodPost, "/api/v1/invites/"+inviteID+"/accept", tokB, nil); code != http.StatusNotFound {
		t.Fatalf("accept twice: %d; want 404", code)
	}
}

func TestHeartbeatValidation(t *testing.T) {
	s := newServer(t, nil)
	tok, id := s.guest("alice")

	if code, _ := s.do(http.MethodPost, "/api/v1/heartbeat", tok, map[string]string{"view": "moon"}); code != http.StatusBadRequest {
		t.Fatalf("bad view: %d", code)
	}
	code, body := s.do(http.MethodPost, "/api/v1/heartbeat", tok, map[string]string{"view": "lobby"})
	if code != http.StatusOK || body["player_id"] != id || body["view"] != "lobby" {
		t.Fatalf("heartbeat: %d %v", code, body)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		history handlers.HistoryReader
		want    int
	}{
		{"no database", nil, http.StatusServiceUnavailable},
		{"database error", stubHistory{err: errors.New("boom")}, http.StatusInternalServerError},
		{"ok", stubHistory{}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, tt.history)
			tok, _ := s.guest("alice")
			if code, body := s.do(http.MethodGet, "/api/v1/me/stats", tok, nil); code != tt.want {
				t.Fatalf("stats: %d; want %d (%v)", code, tt.want, body)
			}
			if code, body := s.do(http.MethodGet, "/api/v1/me/history", tok, nil); code != tt.want {
				t.Fatalf("history: %d; want %d (%v)", code, tt.want, body)
			}
			if code, body := s.do(http.MethodGet, "/api/v1/leaderboard?days=7", "", nil); code != tt.want {
				t.Fatalf("leaderboard: %d; want %d (%v)", code, tt.want, body)
			}
		})
	}

	s := newServer(t, stubHistory{})
	if code, _ := s.do(http.MethodGet, "/api/v1/leaderboard?days=-1", "", nil); code != http.StatusBadRequest {
		t.Fatalf("negative days: %d", code)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		if code, body := s.do(http.MethodGet, path, "", nil); code != http.StatusOK {
			t.Fatalf("%s: %d %v", path, code, body)
		}
	}
}

type flakyStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyStore) Save(ctx context.Context, st *domain.State) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, st)
}

func TestAnswerMarkedWhenStateNotSaved(t *testing.T) {
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	flaky := &flakyStore{Store: fs}
	s := newServerOn(t, nil, flaky)
	tokA, _ := s.guest("alice")
	tokB, _ := s.guest("bob")
	s.do(http.MethodPost, "/api/v1/queue", tokA, nil)
	_, body := s.do(http.MethodPost, "/api/v1/queue", tokB, nil)
	matchID := body["match_id"].(string)

	flaky.setFail(true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/"+matchID+"/answer", strings.NewReader(`{"value":"paper"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokA)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Header().Get("X-State-Durable") != "false" {
		t.Fatalf("status %d durable=%q body %s", w.Code, w.Header().Get("X-State-Durable"), w.Body.String())
	}
	var out struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Result.Status != "waiting" {
		t.Fatalf("result = %+v, %v", out, err)
	}
}
