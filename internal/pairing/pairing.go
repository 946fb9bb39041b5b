// internal/pairing/pairing.go
// Pairing layer: drop-in queue, batch round pairing, and prepared
// assignments. Supplies each participant with exactly one Assignment whose
// peer side another participant (or the synthetic opponent) also holds.

package pairing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nharan/TournamentRPS/internal/anchor"
	"github.com/nharan/TournamentRPS/internal/match"
	"github.com/nharan/TournamentRPS/internal/protocol"
	"github.com/nharan/TournamentRPS/internal/ticket"
)

// SyntheticOpponent is the seat assigned to odd entrants and to drop-ins
// that opted into playing alone
var SyntheticOpponent = protocol.Peer{DID: "did:ai:fairness", Handle: "AI_BYE"}

// Assignment is the bundle delivered to a participant after pairing
type Assignment struct {
	MatchID string        `json:"match_id"`
	Role    string        `json:"role"`
	Peer    protocol.Peer `json:"peer"`
	Ticket  string        `json:"ticket"`
}

type waiting struct {
	tid    string
	did    string
	handle string
	since  time.Time
}

// Service pairs participants and mints their tickets
type Service struct {
	mu sync.Mutex

	// single shared drop-in slot, at most one waiting participant
	slot *waiting

	// prepared assignments keyed by tid/did, consumed once
	assignments map[string]Assignment

	// pre-registered entrants per tournament: did -> handle
	entrants map[string]map[string]string

	tickets  *ticket.Service
	registry *match.Registry
	anchor   *anchor.Sink
	logger   *log.Logger
}

// NewService creates the pairing layer
func NewService(tickets *ticket.Service, registry *match.Registry, sink *anchor.Sink, logger *log.Logger) *Service {
	return &Service{
		assignments: make(map[string]Assignment),
		entrants:    make(map[string]map[string]string),
		tickets:     tickets,
		registry:    registry,
		anchor:      sink,
		logger:      logger,
	}
}

func assignmentKey(tid, did string) string {
	return tid + "/" + did
}

// MatchID derives the stable match id for a canonical (P1, P2) pair
func MatchID(tid, p1, p2 string) string {
	sanitize := func(s string) string { return strings.ReplaceAll(s, ":", "_") }
	return fmt.Sprintf("%s-%s-%s", tid, sanitize(p1), sanitize(p2))
}

// QueueReady handles a drop-in arrival. Returns the participant's
// Assignment, or nil when they should keep waiting.
func (s *Service) QueueReady(tid, did, handle string, aiIfAlone bool) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A prior pairing may already have prepared this side's assignment.
	if a, ok := s.assignments[assignmentKey(tid, did)]; ok {
		delete(s.assignments, assignmentKey(tid, did))
		return &a, nil
	}

	if s.slot == nil || s.slot.did == did {
		if aiIfAlone {
			s.slot = nil
			a, err := s.pairSyntheticLocked(tid, did, handle)
			if err != nil {
				return nil, err
			}
			return &a, nil
		}
		s.slot = &waiting{tid: tid, did: did, handle: handle, since: time.Now()}
		return nil, nil
	}

	w := *s.slot
	s.slot = nil

	a1, a2, err := s.pairLocked(tid, w.did, w.handle, did, handle)
	if err != nil {
		return nil, err
	}
	// Store the waiting side's assignment for its next poll.
	s.assignments[assignmentKey(tid, w.did)] = a1
	return &a2, nil
}

// pairLocked forms the canonical (P1, P2) by lexicographic order of the two
// ids, mints one ticket per side, and registers the ordering with the match
// registry. Returns (first arg's assignment, second arg's assignment).
func (s *Service) pairLocked(tid, didA, handleA, didB, handleB string) (Assignment, Assignment, error) {
	p1, h1, p2, h2 := didA, handleA, didB, handleB
	if p2 < p1 {
		p1, h1, p2, h2 = didB, handleB, didA, handleA
	}

	matchID := MatchID(tid, p1, p2)
	s.registry.SetOrdering(matchID, p1, p2, false)

	t1, err := s.tickets.Issue(p1, matchID)
	if err != nil {
		return Assignment{}, Assignment{}, fmt.Errorf("failed to mint P1 ticket: %w", err)
	}
	t2, err := s.tickets.Issue(p2, matchID)
	if err != nil {
		return Assignment{}, Assignment{}, fmt.Errorf("failed to mint P2 ticket: %w", err)
	}

	assignP1 := Assignment{MatchID: matchID, Role: "P1", Peer: protocol.Peer{DID: p2, Handle: orDID(h2, p2)}, Ticket: t1}
	assignP2 := Assignment{MatchID: matchID, Role: "P2", Peer: protocol.Peer{DID: p1, Handle: orDID(h1, p1)}, Ticket: t2}

	s.logger.Printf("paired %s vs %s in %s", p1, p2, matchID)

	if didA == p1 {
		return assignP1, assignP2, nil
	}
	return assignP2, assignP1, nil
}

// pairSyntheticLocked seats a participant against the synthetic opponent
// as P1. The synthetic seat is marked permanently attached so the match
// plays out through pick substitution.
func (s *Service) pairSyntheticLocked(tid, did, handle string) (Assignment, error) {
	matchID := MatchID(tid, did, SyntheticOpponent.DID)
	s.registry.SetOrdering(matchID, did, SyntheticOpponent.DID, true)

	t, err := s.tickets.Issue(did, matchID)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to mint ticket: %w", err)
	}

	s.logger.Printf("paired %s vs %s in %s", did, SyntheticOpponent.DID, matchID)
	return Assignment{MatchID: matchID, Role: "P1", Peer: SyntheticOpponent, Ticket: t}, nil
}

// Cancel removes a participant from the queue slot and discards any
// prepared assignments. Returns whether anything was removed.
func (s *Service) Cancel(did string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	if s.slot != nil && s.slot.did == did {
		s.slot = nil
		removed = true
	}
	for key := range s.assignments {
		if strings.HasSuffix(key, "/"+did) {
			delete(s.assignments, key)
			removed = true
		}
	}
	return removed
}

// Poll returns a prepared assignment, consuming it, or nil to keep waiting
func (s *Service) Poll(tid, did string) *Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.assignments[assignmentKey(tid, did)]; ok {
		delete(s.assignments, assignmentKey(tid, did))
		return &a
	}
	return nil
}

// Register records an entrant for later batch rounds
func (s *Service) Register(tid, did, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entrants[tid] == nil {
		s.entrants[tid] = make(map[string]string)
	}
	s.entrants[tid][did] = orDID(handle, did)
}

// StartRound batch-pairs the sorted entrant roster of a tournament. Walks
// pairs greedily; an odd final entrant is seated against the synthetic
// opponent and still receives an Assignment. Returns the count of
// human-pair matches produced.
func (s *Service) StartRound(tid string, round int) (int, error) {
	s.mu.Lock()

	roster := make([]string, 0, len(s.entrants[tid]))
	for did := range s.entrants[tid] {
		roster = append(roster, did)
	}
	sort.Strings(roster)

	pairs := 0
	for i := 0; i+1 < len(roster); i += 2 {
		p1, p2 := roster[i], roster[i+1]
		a1, a2, err := s.pairLocked(tid, p1, s.entrants[tid][p1], p2, s.entrants[tid][p2])
		if err != nil {
			s.mu.Unlock()
			return pairs, err
		}
		s.assignments[assignmentKey(tid, p1)] = a1
		s.assignments[assignmentKey(tid, p2)] = a2
		pairs++
	}

	if len(roster)%2 == 1 {
		last := roster[len(roster)-1]
		a, err := s.pairSyntheticLocked(tid, last, s.entrants[tid][last])
		if err != nil {
			s.mu.Unlock()
			return pairs, err
		}
		s.assignments[assignmentKey(tid, last)] = a
	}
	s.mu.Unlock()

	// Best-effort round anchor; never stalls the response.
	go s.postRoundAnchor(tid, round, roster)

	return pairs, nil
}

func (s *Service) postRoundAnchor(tid string, round int, roster []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alive := sha256.Sum256([]byte(strings.Join(roster, "\n")))
	seed := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", tid, round)))

	s.anchor.PostRoundAnchor(ctx, anchor.RoundAnchor{
		TID:         tid,
		Round:       round,
		AliveRoot:   hex.EncodeToString(alive[:]),
		PairingSeed: hex.EncodeToString(seed[:]),
		MerkleRoot:  "0x00",
		PostedAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

// Counts reports queue occupancy for the admin surface
func (s *Service) Counts() (waiting, assignments, entrants int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil {
		waiting = 1
	}
	for _, roster := range s.entrants {
		entrants += len(roster)
	}
	return waiting, len(s.assignments), entrants
}

// ResetTournament drops the queue slot, prepared assignments and entrants
// of one tournament. Returns the number of assignments discarded.
func (s *Service) ResetTournament(tid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil && s.slot.tid == tid {
		s.slot = nil
	}
	dropped := 0
	for key := range s.assignments {
		if strings.HasPrefix(key, tid+"/") {
			delete(s.assignments, key)
			dropped++
		}
	}
	delete(s.entrants, tid)
	return dropped
}

// ResetAll clears every pairing structure
func (s *Service) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slot = nil
	s.assignments = make(map[string]Assignment)
	s.entrants = make(map[string]map[string]string)
}

func orDID(handle, did string) string {
	if handle == "" {
		return did
	}
	return handle
}
