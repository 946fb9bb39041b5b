package match

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nharan/TournamentRPS/internal/game"
)

func testRegistry(deadline time.Duration) *Registry {
	return NewRegistry(deadline, log.New(io.Discard, "", 0))
}

// drain decodes every frame currently queued on an endpoint
func drain(t *testing.T, ep *Endpoint) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for {
		select {
		case raw := <-ep.Frames():
			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &decoded))
			frames = append(frames, decoded)
		default:
			return frames
		}
	}
}

// await blocks until a frame of the given type arrives or the timeout hits
func await(t *testing.T, ep *Endpoint, frameType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case raw := <-ep.Frames():
			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &decoded))
			if decoded["type"] == frameType {
				return decoded
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", frameType)
			return nil
		}
	}
}

func ofType(frames []map[string]interface{}, frameType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, f := range frames {
		if f["type"] == frameType {
			out = append(out, f)
		}
	}
	return out
}

func startTwoPlayerMatch(r *Registry, matchID string) (*Endpoint, *Endpoint) {
	r.SetOrdering(matchID, "did:plc:alice", "did:plc:bob", false)
	epA := r.Attach(matchID, "did:plc:alice")
	epB := r.Attach(matchID, "did:plc:bob")
	r.StartMatch(matchID)
	return epA, epB
}

func TestScriptedTurns(t *testing.T) {
	// P1 plays R, S, R; P2 plays S, P, P. Expected results: P1, P1, P2.
	r := testRegistry(time.Hour)
	epA, epB := startTwoPlayerMatch(r, "demo-a-b")

	script := []struct {
		p1, p2   game.Move
		expected string
	}{
		{game.MoveRock, game.MoveScissors, "P1"},
		{game.MoveScissors, game.MovePaper, "P1"},
		{game.MoveRock, game.MovePaper, "P2"},
	}

	for i, step := range script {
		turn := i + 1
		r.HandleReveal("demo-a-b", "did:plc:alice", turn, step.p1)
		r.HandleReveal("demo-a-b", "did:plc:bob", turn, step.p2)
	}

	framesA := drain(t, epA)
	framesB := drain(t, epB)

	resultsA := ofType(framesA, "TURN_RESULT")
	require.Len(t, resultsA, 3)
	for i, step := range script {
		assert.Equal(t, step.expected, resultsA[i]["result"], "turn %d", i+1)
		assert.Equal(t, string(step.p1), resultsA[i]["p1_move"])
		assert.Equal(t, string(step.p2), resultsA[i]["p2_move"])
		assert.Equal(t, false, resultsA[i]["ai"])
		assert.Empty(t, resultsA[i]["ai_for_dids"])
	}

	// No match end at 2-1; a fourth turn must have been announced.
	assert.Empty(t, ofType(framesA, "MATCH_RESULT"))
	starts := ofType(framesA, "TURN_START")
	require.Len(t, starts, 4)
	assert.Equal(t, float64(4), starts[3]["turn"])

	// Both endpoints observe identical outcome sequences.
	resultsB := ofType(framesB, "TURN_RESULT")
	require.Len(t, resultsB, 3)
	for i := range resultsA {
		assert.Equal(t, resultsA[i]["result"], resultsB[i]["result"])
		assert.Equal(t, resultsA[i]["p1_move"], resultsB[i]["p1_move"])
		assert.Equal(t, resultsA[i]["p2_move"], resultsB[i]["p2_move"])
	}
}

func TestFiveDrawsDoNotEndMatch(t *testing.T) {
	r := testRegistry(time.Hour)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	for turn := 1; turn <= 5; turn++ {
		r.HandleReveal("demo-a-b", "did:plc:alice", turn, game.MoveRock)
		r.HandleReveal("demo-a-b", "did:plc:bob", turn, game.MoveRock)
	}

	frames := drain(t, epA)
	results := ofType(frames, "TURN_RESULT")
	require.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, "DRAW", res["result"])
	}

	assert.Empty(t, ofType(frames, "MATCH_RESULT"))

	// A sixth turn is initiated.
	starts := ofType(frames, "TURN_START")
	require.Len(t, starts, 6)
	assert.Equal(t, float64(6), starts[5]["turn"])
}

func TestFiveWinsEndsMatch(t *testing.T) {
	r := testRegistry(time.Hour)
	epA, epB := startTwoPlayerMatch(r, "demo-a-b")

	for turn := 1; turn <= 5; turn++ {
		r.HandleReveal("demo-a-b", "did:plc:alice", turn, game.MoveRock)
		r.HandleReveal("demo-a-b", "did:plc:bob", turn, game.MoveScissors)
	}

	for _, ep := range []*Endpoint{epA, epB} {
		frames := drain(t, ep)

		results := ofType(frames, "TURN_RESULT")
		require.Len(t, results, 5)
		for _, res := range results {
			assert.Equal(t, "P1", res["result"])
		}

		ends := ofType(frames, "MATCH_RESULT")
		require.Len(t, ends, 1)
		assert.Equal(t, "P1", ends[0]["winner"])

		// MATCH_RESULT follows immediately after the fifth TURN_RESULT;
		// no sixth turn is announced.
		assert.Len(t, ofType(frames, "TURN_START"), 5)
		assert.Equal(t, "MATCH_RESULT", frames[len(frames)-1]["type"])
	}

	// The registry destroys ended matches.
	assert.Zero(t, r.Counts().Matches)
}

func TestConcurrentRevealsResolveOnce(t *testing.T) {
	// Both sessions reveal for turn 1 within microseconds; exactly one
	// TURN_RESULT{turn:1} reaches each endpoint.
	for i := 0; i < 50; i++ {
		r := testRegistry(time.Hour)
		epA, epB := startTwoPlayerMatch(r, "demo-a-b")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.HandleReveal("demo-a-b", "did:plc:alice", 1, game.MoveRock)
		}()
		go func() {
			defer wg.Done()
			r.HandleReveal("demo-a-b", "did:plc:bob", 1, game.MoveScissors)
		}()
		wg.Wait()

		for _, ep := range []*Endpoint{epA, epB} {
			results := ofType(drain(t, ep), "TURN_RESULT")
			require.Len(t, results, 1)
			assert.Equal(t, float64(1), results[0]["turn"])
		}
	}
}

func TestDeadlineSubstitutesBothMissingReveals(t *testing.T) {
	r := testRegistry(50 * time.Millisecond)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	res := await(t, epA, "TURN_RESULT", time.Second)
	assert.Equal(t, float64(1), res["turn"])
	assert.Equal(t, true, res["ai"])
	assert.Len(t, res["ai_for_dids"], 2)
	assert.Contains(t, res["ai_for_dids"], "did:plc:alice")
	assert.Contains(t, res["ai_for_dids"], "did:plc:bob")
}

func TestDeadlineSubstitutesOnlyMissingSide(t *testing.T) {
	r := testRegistry(100 * time.Millisecond)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	r.HandleReveal("demo-a-b", "did:plc:alice", 1, game.MoveRock)

	res := await(t, epA, "TURN_RESULT", time.Second)
	assert.Equal(t, true, res["ai"])
	assert.Equal(t, []interface{}{"did:plc:bob"}, res["ai_for_dids"])
	assert.Equal(t, "R", res["p1_move"])
}

func TestDetachBroadcastsOpponentLeft(t *testing.T) {
	r := testRegistry(200 * time.Millisecond)
	epA, epB := startTwoPlayerMatch(r, "demo-a-b")

	r.Detach("demo-a-b", epB)

	// The remaining session hears OPPONENT_LEFT no later than the turn
	// deadline (here: immediately on detach, again when the deadline ends
	// the under-populated match).
	left := await(t, epA, "OPPONENT_LEFT", time.Second)
	assert.Equal(t, "demo-a-b", left["match_id"])

	require.Eventually(t, func() bool {
		return r.Counts().Matches == 0
	}, time.Second, 10*time.Millisecond)
}

func TestLateRevealAfterResolutionIsDiscarded(t *testing.T) {
	r := testRegistry(time.Hour)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	r.HandleReveal("demo-a-b", "did:plc:alice", 1, game.MoveRock)
	r.HandleReveal("demo-a-b", "did:plc:bob", 1, game.MoveScissors)
	// Duplicate reveal for the resolved turn: no second result, no error.
	r.HandleReveal("demo-a-b", "did:plc:bob", 1, game.MovePaper)

	results := ofType(drain(t, epA), "TURN_RESULT")
	require.Len(t, results, 1)
	assert.Equal(t, "P1", results[0]["result"])
}

func TestRevealForWrongTurnIsIgnored(t *testing.T) {
	r := testRegistry(time.Hour)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	r.HandleReveal("demo-a-b", "did:plc:alice", 7, game.MoveRock)
	r.HandleReveal("demo-a-b", "did:plc:bob", 7, game.MoveScissors)

	assert.Empty(t, ofType(drain(t, epA), "TURN_RESULT"))
}

func TestTurnCountersAreMonotone(t *testing.T) {
	r := testRegistry(time.Hour)
	epA, _ := startTwoPlayerMatch(r, "demo-a-b")

	moves := []game.Move{game.MoveRock, game.MovePaper, game.MoveScissors}
	for turn := 1; turn <= 6; turn++ {
		// Bob wins the odd turns and the even turns are draws, so the match
		// is still running (0-3) after six turns.
		bobMove := moves[(turn+1)%3]
		if turn%2 == 0 {
			bobMove = moves[turn%3]
		}
		r.HandleReveal("demo-a-b", "did:plc:alice", turn, moves[turn%3])
		r.HandleReveal("demo-a-b", "did:plc:bob", turn, bobMove)
	}

	lastStart, lastResult := 0, 0
	for _, f := range drain(t, epA) {
		turn := int(f["turn"].(float64))
		switch f["type"] {
		case "TURN_START":
			assert.Greater(t, turn, lastStart)
			lastStart = turn
		case "TURN_RESULT":
			assert.Greater(t, turn, lastResult)
			lastResult = turn
		}
	}
	assert.Equal(t, 6, lastResult)
}

func TestSyntheticOpponentPlaysViaSubstitution(t *testing.T) {
	r := testRegistry(30 * time.Millisecond)
	r.SetOrdering("demo-a-ai", "did:plc:alice", "did:ai:fairness", true)
	ep := r.Attach("demo-a-ai", "did:plc:alice")
	r.StartMatch("demo-a-ai")

	r.HandleReveal("demo-a-ai", "did:plc:alice", 1, game.MoveRock)

	// The synthetic seat never reveals; the deadline resolves the turn with
	// its pick substituted instead of ending the match.
	res := await(t, ep, "TURN_RESULT", time.Second)
	assert.Equal(t, []interface{}{"did:ai:fairness"}, res["ai_for_dids"])
}

func TestResetClearsMatches(t *testing.T) {
	r := testRegistry(time.Hour)
	startTwoPlayerMatch(r, "demo-a-b")
	startTwoPlayerMatch(r, "other-c-d")

	assert.Equal(t, 2, r.Counts().Matches)
	assert.Equal(t, 1, r.ResetPrefix("demo-"))
	assert.Equal(t, 1, r.Counts().Matches)
	assert.Equal(t, 1, r.ResetAll())
	assert.Zero(t, r.Counts().Matches)
}
