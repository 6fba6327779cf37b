// Command ws_smoke plays one full match against a running server with two
// bot players: A always answers correctly, B always answers wrong a little
// later, so A wins by the lead margin.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"reflexduel/internal/domain"
	"reflexduel/internal/game"
	"reflexduel/internal/logger"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type bot struct {
	name    string
	conn    *websocket.Conn
	correct bool
	delay   time.Duration
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "server host:port")
	timeout := flag.Duration("timeout", 60*time.Second, "give up after")
	flag.Parse()
	logger.Init("info", "text")

	suffix := time.Now().Format("150405.000")
	a := mustBot(*addr, "smokeA-"+suffix, true, 0)
	b := mustBot(*addr, "smokeB-"+suffix, false, 150*time.Millisecond)
	defer a.conn.Close()
	defer b.conn.Close()

	a.send(`{"type":"play"}`)
	b.send(`{"type":"play"}`)

	done := make(chan domain.MatchView, 2)
	go a.play(done)
	go b.play(done)

	select {
	case v := <-done:
		logger.Info("match finished", "match_id", v.MatchID, "winner", v.Winner, "reason", v.Reason, "rounds", v.Round)
		if v.Reason != domain.FinishLead {
			logger.Error("unexpected finish reason", "reason", v.Reason)
			os.Exit(1)
		}
	case <-time.After(*timeout):
		logger.Fatal("smoke test timed out")
	}
	logger.Info("smoke test finished")
}

func mustBot(addr, name string, correct bool, delay time.Duration) *bot {
	body, _ := json.Marshal(map[string]string{"name": name})
	res, err := http.Post("http://"+addr+"/api/v1/guest", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatal("create guest", "name", name, "error", err)
	}
	defer res.Body.Close()
	var guest struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&guest); err != nil || guest.Token == "" {
		logger.Fatal("create guest", "name", name, "status", res.StatusCode, "error", err)
	}

	url := fmt.Sprintf("ws://%s/ws?token=%s&style=word", addr, guest.Token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("dial", "name", name, "error", err)
	}
	return &bot{name: name, conn: conn, correct: correct, delay: delay}
}

func (b *bot) send(msg string) {
	if err := b.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		logger.Fatal("write", "bot", b.name, "error", err)
	}
}

// play answers every new round it sees and reports the final view.
func (b *bot) play(done chan<- domain.MatchView) {
	answered := 0
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			logger.Warn("read", "bot", b.name, "error", err)
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Type != "state" {
			continue
		}
		var v domain.MatchView
		if err := json.Unmarshal(f.Payload, &v); err != nil {
			continue
		}
		if v.Finished {
			done <- v
			return
		}
		if v.Answered || v.Round <= answered {
			continue
		}
		answered = v.Round
		time.Sleep(b.delay)
		b.send(fmt.Sprintf(`{"type":"answer","value":"%s"}`, b.pick(v)))
	}
}

func (b *bot) pick(v domain.MatchView) domain.Symbol {
	for _, o := range v.Options {
		if game.Beats(o, v.Target) == b.correct {
			return o
		}
	}
	return v.Options[0]
}
