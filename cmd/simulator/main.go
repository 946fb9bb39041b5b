// cmd/simulator/main.go
// Scripted two-player client that drives a full match end to end against a
// running server: queue (or direct-ticket), connect, reveal on each
// TURN_START, and validate every TURN_RESULT against the expected outcome.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nharan/TournamentRPS/internal/game"
	"github.com/nharan/TournamentRPS/internal/pairing"
	"github.com/nharan/TournamentRPS/internal/protocol"
)

type simConfig struct {
	coord    string
	signalWS string
	tid      string
	verbose  bool
}

type assignInfo struct {
	matchID string
	ticket  string
	role    string
}

type plannedTurn struct {
	p1Move game.Move
	p2Move game.Move
}

func main() {
	cfg := simConfig{
		coord:    envOrDefault("COORD", "http://localhost:8080"),
		signalWS: envOrDefault("SIG", "ws://localhost:8080/ws"),
		tid:      "demo",
		verbose:  os.Getenv("SIM_VERBOSE") == "1",
	}

	// Deterministic fast-fail script: P1 wins all three turns.
	planned := []plannedTurn{
		{game.MoveRock, game.MoveScissors},
		{game.MovePaper, game.MoveRock},
		{game.MoveScissors, game.MovePaper},
	}

	var preA, preB *assignInfo
	if os.Getenv("SIM_DIRECT") == "1" {
		var err error
		preA, preB, err = directAssignments(cfg)
		if err != nil {
			log.Fatalf("direct ticketing failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runPlayer("simA", cfg, planned, preA); err != nil {
			errs <- fmt.Errorf("simA: %w", err)
		}
	}()

	// Small gap to avoid init races between the two sessions.
	time.Sleep(800 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runPlayer("simB", cfg, planned, preB); err != nil {
			errs <- fmt.Errorf("simB: %w", err)
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		log.Fatalf("simulation failed: %v", err)
	}
	log.Println("simulation passed")
}

// directAssignments skips the queue: both sides are ticketed straight into
// a shared match id, avoiding interference from other queue users.
func directAssignments(cfg simConfig) (*assignInfo, *assignInfo, error) {
	didA, didB := "did:plc:simA", "did:plc:simB"
	p1, p2 := didA, didB
	if p2 < p1 {
		p1, p2 = p2, p1
	}
	matchID := pairing.MatchID(cfg.tid, p1, p2)

	t1, err := fetchTicket(cfg.coord, p1, matchID)
	if err != nil {
		return nil, nil, err
	}
	t2, err := fetchTicket(cfg.coord, p2, matchID)
	if err != nil {
		return nil, nil, err
	}
	return &assignInfo{matchID: matchID, ticket: t1, role: "P1"},
		&assignInfo{matchID: matchID, ticket: t2, role: "P2"}, nil
}

func fetchTicket(coord, did, matchID string) (string, error) {
	body, err := postJSON(coord+"/ticket", map[string]interface{}{"did": did, "match_id": matchID})
	if err != nil {
		return "", err
	}
	ticket, _ := body["ticket"].(string)
	if ticket == "" {
		return "", fmt.Errorf("no ticket in response")
	}
	return ticket, nil
}

// queueUntilAssigned polls /queue_ready until the coordinator pairs us
func queueUntilAssigned(name, did string, cfg simConfig) (*assignInfo, error) {
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		body, err := postJSON(cfg.coord+"/queue_ready", map[string]interface{}{
			"tid": cfg.tid, "did": did, "handle": name,
		})
		if err != nil {
			return nil, fmt.Errorf("queue_ready request failed: %w", err)
		}
		if body["status"] == "ASSIGN" {
			role, _ := body["role"].(string)
			if role == "" {
				return nil, fmt.Errorf("missing role in ASSIGN")
			}
			matchID, _ := body["match_id"].(string)
			ticket, _ := body["ticket"].(string)
			return &assignInfo{matchID: matchID, ticket: ticket, role: role}, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("%s queue timeout", name)
}

func runPlayer(name string, cfg simConfig, planned []plannedTurn, pre *assignInfo) error {
	did := "did:plc:" + name

	assign := pre
	if assign == nil {
		var err error
		assign, err = queueUntilAssigned(name, did, cfg)
		if err != nil {
			return err
		}
	}
	if cfg.verbose {
		log.Printf("%s assigned: role=%s match=%s", name, assign.role, assign.matchID)
	}

	ws, _, err := websocket.DefaultDialer.Dial(cfg.signalWS+"?ticket="+url.QueryEscape(assign.ticket), nil)
	if err != nil {
		return fmt.Errorf("ws connect failed: %w", err)
	}
	defer ws.Close()
	if cfg.verbose {
		log.Printf("%s connected", name)
	}

	for idx, turn := range planned {
		observedTurn, err := awaitFrame(ws, protocol.TypeTurnStart, 12*time.Second, nil)
		if err != nil {
			return fmt.Errorf("TURN_START timeout (script idx %d): %w", idx+1, err)
		}

		move := turn.p1Move
		if assign.role == "P2" {
			move = turn.p2Move
		}
		if cfg.verbose {
			log.Printf("%s REVEAL turn=%d move=%s", name, observedTurn, move)
		}

		reveal := protocol.MustMarshal(map[string]interface{}{
			"type":     protocol.TypeReveal,
			"match_id": assign.matchID,
			"turn":     observedTurn,
			"move_":    string(move),
			"nonce":    fmt.Sprintf("n%s%d", name, observedTurn),
		})
		if err := ws.WriteMessage(websocket.TextMessage, reveal); err != nil {
			return fmt.Errorf("send reveal failed: %w", err)
		}

		expected := string(game.Compare(turn.p1Move, turn.p2Move))
		var result string
		_, err = awaitFrame(ws, protocol.TypeTurnResult, 12*time.Second, func(frame map[string]interface{}) bool {
			if int(frame["turn"].(float64)) != observedTurn {
				return false
			}
			result, _ = frame["result"].(string)
			return true
		})
		if err != nil {
			return fmt.Errorf("TURN_RESULT timeout on turn %d: %w", observedTurn, err)
		}
		if result != expected {
			return fmt.Errorf("expected %s on turn %d (%s vs %s), got %s",
				expected, observedTurn, turn.p1Move, turn.p2Move, result)
		}
		if cfg.verbose {
			log.Printf("%s TURN_RESULT turn=%d result=%s", name, observedTurn, result)
		}
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if cfg.verbose {
		log.Printf("%s done", name)
	}
	return nil
}

// awaitFrame reads until a frame of the wanted type (passing the optional
// filter) arrives. Fails fast when the opponent leaves.
func awaitFrame(ws *websocket.Conn, frameType string, timeout time.Duration, accept func(map[string]interface{}) bool) (int, error) {
	ws.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return 0, err
		}

		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame["type"] == protocol.TypeOpponentLeft {
			return 0, fmt.Errorf("opponent left before resolution")
		}
		if frame["type"] != frameType {
			continue
		}
		if accept != nil && !accept(frame) {
			continue
		}
		turn := 0
		if v, ok := frame["turn"].(float64); ok {
			turn = int(v)
		}
		return turn, nil
	}
}

func postJSON(url string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return decoded, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
