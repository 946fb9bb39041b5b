// internal/match/arbiter.go
// The turn arbiter: a single transactional decision function per match.
// Reveal arrivals and deadline firings both funnel into resolveLocked; the
// resolution-marks set is the sole gate that makes each turn resolve
// exactly once, whichever event enters the critical section first.

package match

import (
	"sort"
	"time"

	"github.com/nharan/TournamentRPS/internal/game"
	"github.com/nharan/TournamentRPS/internal/protocol"
)

const winningScore = 5

// StartMatch announces turn 1 and arms its deadline, once per match
func (r *Registry) StartMatch(matchID string) {
	m := r.lookup(matchID)
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r.startLocked(m)
}

func (r *Registry) startLocked(m *Match) {
	if m.started || m.ended {
		return
	}
	m.started = true
	m.turn = 1
	m.deadline = time.Now().Add(r.turnDeadline)
	r.broadcastLocked(m, turnStartFrame(m))
	r.armTimerLocked(m)
}

// armTimerLocked schedules the deadline firing for the current turn. The
// expected turn is captured so a stale timer for an already-advanced turn
// is ignored.
func (r *Registry) armTimerLocked(m *Match) {
	expected := m.turn
	m.timer = time.AfterFunc(time.Until(m.deadline), func() {
		r.handleDeadline(m, expected)
	})
}

// HandleReveal ingests a pick for (match, turn, participant) and resolves
// the turn once both canonical participants have revealed.
func (r *Registry) HandleReveal(matchID, did string, turn int, move game.Move) {
	m := r.lookup(matchID)
	if m == nil {
		r.logger.Printf("reveal for unknown match %s ignored", matchID)
		return
	}

	m.mu.Lock()
	if m.ended || m.resolved[turn] {
		// Late reveal for a finished turn: discarded without error.
		m.mu.Unlock()
		return
	}
	if turn != m.turn {
		r.logger.Printf("match %s: reveal for turn %d ignored (current turn %d)", matchID, turn, m.turn)
		m.mu.Unlock()
		return
	}

	if m.reveals[turn] == nil {
		m.reveals[turn] = make(map[string]game.Move)
	}
	m.reveals[turn][did] = move

	p1, p2 := r.canonicalLocked(m)
	if p1 != "" {
		_, ok1 := m.reveals[turn][p1]
		_, ok2 := m.reveals[turn][p2]
		if ok1 && ok2 {
			r.resolveLocked(m, turn)
		}
	}

	ended := m.ended
	m.mu.Unlock()

	if ended {
		r.remove(matchID)
	}
}

// handleDeadline fires when the timer for (match, expected-turn) expires
func (r *Registry) handleDeadline(m *Match, expected int) {
	m.mu.Lock()
	if m.ended || m.turn != expected {
		m.mu.Unlock()
		return
	}

	if len(m.participants) < 2 {
		r.broadcastLocked(m, opponentLeftFrame(m.id))
		r.endLocked(m)
		m.mu.Unlock()
		r.remove(m.id)
		return
	}

	r.resolveLocked(m, expected)
	ended := m.ended
	m.mu.Unlock()

	if ended {
		r.remove(m.id)
	}
}

// canonicalLocked returns the fixed (P1, P2) labelling, falling back to
// sorted order of the attached participants when pairing never registered
// one. Both pairing modes label the lexicographically smaller id P1, so the
// fallback agrees with the canonical choice.
func (r *Registry) canonicalLocked(m *Match) (string, string) {
	if m.p1 != "" && m.p2 != "" {
		return m.p1, m.p2
	}
	if len(m.participants) < 2 {
		return "", ""
	}

	dids := make([]string, 0, len(m.participants))
	for did := range m.participants {
		dids = append(dids, did)
	}
	sort.Strings(dids)
	m.p1, m.p2 = dids[0], dids[1]
	return m.p1, m.p2
}

// resolveLocked commits the outcome of turn T exactly once and advances
// the match, substituting picks for participants that never revealed.
func (r *Registry) resolveLocked(m *Match, turn int) {
	if m.resolved[turn] {
		return
	}

	p1, p2 := r.canonicalLocked(m)
	if p1 == "" {
		r.logger.Printf("match %s: cannot resolve turn %d without two participants", m.id, turn)
		return
	}

	substituted := []string{}
	pick := func(did, roleSalt string) game.Move {
		if mv, ok := m.reveals[turn][did]; ok {
			return mv
		}
		substituted = append(substituted, did)
		return game.SubstituteMove(m.id, turn, roleSalt)
	}
	p1Move := pick(p1, "P1")
	p2Move := pick(p2, "P2")

	outcome := game.Compare(p1Move, p2Move)
	switch outcome {
	case game.OutcomeP1:
		m.scoreP1++
	case game.OutcomeP2:
		m.scoreP2++
	}
	m.resolved[turn] = true

	r.broadcastLocked(m, protocol.MustMarshal(protocol.TurnResult{
		Type:      protocol.TypeTurnResult,
		MatchID:   m.id,
		Turn:      turn,
		Result:    string(outcome),
		AI:        len(substituted) > 0,
		AIForDids: substituted,
		P1Move:    string(p1Move),
		P2Move:    string(p2Move),
	}))

	if m.scoreP1 >= winningScore || m.scoreP2 >= winningScore {
		winner := string(game.OutcomeP1)
		if m.scoreP2 >= winningScore {
			winner = string(game.OutcomeP2)
		}
		r.broadcastLocked(m, protocol.MustMarshal(protocol.MatchResult{
			Type:    protocol.TypeMatchResult,
			MatchID: m.id,
			Winner:  winner,
		}))
		r.endLocked(m)
		return
	}

	m.turn = turn + 1
	m.deadline = time.Now().Add(r.turnDeadline)
	r.broadcastLocked(m, turnStartFrame(m))
	r.armTimerLocked(m)
}

func (r *Registry) endLocked(m *Match) {
	m.ended = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// broadcastLocked fans one canonical payload out to every attached
// endpoint. Sends never block; a session whose queue is full misses the
// frame rather than stalling the arbiter.
func (r *Registry) broadcastLocked(m *Match, frame []byte) {
	for ep := range m.endpoints {
		if !ep.send(frame) {
			r.logger.Printf("match %s: dropped frame for slow session %s", m.id, ep.DID)
		}
	}
}

func turnStartFrame(m *Match) []byte {
	return protocol.MustMarshal(protocol.TurnStart{
		Type:            protocol.TypeTurnStart,
		MatchID:         m.id,
		Turn:            m.turn,
		DeadlineMsEpoch: m.deadline.UnixMilli(),
		NowMsEpoch:      time.Now().UnixMilli(),
	})
}

func opponentLeftFrame(matchID string) []byte {
	return protocol.MustMarshal(protocol.OpponentLeft{
		Type:    protocol.TypeOpponentLeft,
		MatchID: matchID,
	})
}
