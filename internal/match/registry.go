// internal/match/registry.go
// Process-wide registry owning all live match state. Lock nesting is
// strictly registry -> match; neither lock is ever held across socket I/O.

package match

import (
	"log"
	"sync"
	"time"

	"github.com/nharan/TournamentRPS/internal/game"
)

// endpointBuffer sizes the per-session fan-out queue. The arbiter never
// blocks on a slow session: frames beyond the buffer are dropped.
const endpointBuffer = 256

// Endpoint is the fan-out handle a session registers with its match
type Endpoint struct {
	DID    string
	frames chan []byte
}

func newEndpoint(did string) *Endpoint {
	return &Endpoint{DID: did, frames: make(chan []byte, endpointBuffer)}
}

// Frames exposes the outbound queue to the owning session's write pump
func (e *Endpoint) Frames() <-chan []byte {
	return e.frames
}

// Enqueue lets the owning session push its own frames (error replies,
// assignment echoes) through the same queue as arbiter fan-out, preserving
// per-endpoint FIFO. Never blocks; reports whether the frame fit.
func (e *Endpoint) Enqueue(frame []byte) bool {
	return e.send(frame)
}

func (e *Endpoint) send(frame []byte) bool {
	select {
	case e.frames <- frame:
		return true
	default:
		return false
	}
}

// Match holds the shared state of one two-seat contest
type Match struct {
	mu sync.Mutex

	id     string
	p1, p2 string

	participants map[string]bool
	synthetic    map[string]bool
	endpoints    map[*Endpoint]struct{}

	turn     int
	deadline time.Time
	reveals  map[int]map[string]game.Move
	resolved map[int]bool
	commits  map[string][]string

	scoreP1, scoreP2 int

	started bool
	ended   bool
	timer   *time.Timer
}

func newMatch(id string) *Match {
	return &Match{
		id:           id,
		participants: make(map[string]bool),
		synthetic:    make(map[string]bool),
		endpoints:    make(map[*Endpoint]struct{}),
		reveals:      make(map[int]map[string]game.Move),
		resolved:     make(map[int]bool),
		commits:      make(map[string][]string),
	}
}

type ordering struct {
	p1, p2      string
	syntheticP2 bool
}

// Counts summarises registry occupancy for the admin surface
type Counts struct {
	Matches  int `json:"matches"`
	Sessions int `json:"sessions"`
}

// Registry maps match ids to their state and runs the turn arbiter
type Registry struct {
	mu        sync.Mutex
	matches   map[string]*Match
	orderings map[string]ordering

	turnDeadline time.Duration
	logger       *log.Logger
}

// NewRegistry creates an empty registry with the configured turn deadline
func NewRegistry(turnDeadline time.Duration, logger *log.Logger) *Registry {
	return &Registry{
		matches:      make(map[string]*Match),
		orderings:    make(map[string]ordering),
		turnDeadline: turnDeadline,
		logger:       logger,
	}
}

// SetOrdering records the canonical (P1, P2) labelling chosen by the
// pairing layer, fixed for the match's lifetime. A synthetic P2 is seated
// as permanently attached so its reveals are substituted instead of the
// match dying to OPPONENT_LEFT.
func (r *Registry) SetOrdering(matchID, p1, p2 string, syntheticP2 bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderings[matchID] = ordering{p1: p1, p2: p2, syntheticP2: syntheticP2}
}

// lookup returns the live match or nil; never creates
func (r *Registry) lookup(matchID string) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matches[matchID]
}

// getOrCreate lazily creates match state on the first session's attach
func (r *Registry) getOrCreate(matchID string) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.matches[matchID]; ok {
		return m
	}

	m := newMatch(matchID)
	if ord, ok := r.orderings[matchID]; ok {
		m.p1, m.p2 = ord.p1, ord.p2
		if ord.syntheticP2 {
			m.participants[ord.p2] = true
			m.synthetic[ord.p2] = true
		}
	}
	r.matches[matchID] = m
	return m
}

func (r *Registry) remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, matchID)
	delete(r.orderings, matchID)
}

// Attach registers a session with its match, creating the match lazily
func (r *Registry) Attach(matchID, did string) *Endpoint {
	m := r.getOrCreate(matchID)
	ep := newEndpoint(did)

	m.mu.Lock()
	m.participants[did] = true
	m.endpoints[ep] = struct{}{}
	if m.started && !m.ended {
		// Catch a late joiner up on the in-flight turn.
		ep.send(turnStartFrame(m))
	}
	m.mu.Unlock()

	return ep
}

// Detach removes a session's endpoint and participant mark. If the match is
// running and drops under two participants, the remaining session is told
// its opponent left; the match itself ends at the next deadline firing.
func (r *Registry) Detach(matchID string, ep *Endpoint) {
	m := r.lookup(matchID)
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.endpoints, ep)

	if !m.synthetic[ep.DID] {
		stillAttached := false
		for other := range m.endpoints {
			if other.DID == ep.DID {
				stillAttached = true
				break
			}
		}
		if !stillAttached {
			delete(m.participants, ep.DID)
		}
	}

	if m.started && !m.ended && len(m.participants) < 2 {
		r.broadcastLocked(m, opponentLeftFrame(m.id))
	}
}

// StoreCommits records a participant's commitment digests. Wire-level
// intake only; resolution never consults them.
func (r *Registry) StoreCommits(matchID, did string, hashes []string) {
	m := r.lookup(matchID)
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[did] = hashes
}

// Relay forwards an opaque frame to every endpoint of the match
func (r *Registry) Relay(matchID string, frame []byte) {
	m := r.lookup(matchID)
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r.broadcastLocked(m, frame)
}

// Reset tears down a single match. Returns whether it existed.
func (r *Registry) Reset(matchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return false
	}

	m.mu.Lock()
	r.endLocked(m)
	m.mu.Unlock()

	delete(r.matches, matchID)
	delete(r.orderings, matchID)
	return true
}

// ResetPrefix tears down every match whose id starts with the given prefix
// (tournament resets use "tid-"). Returns the number cleared.
func (r *Registry) ResetPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for id, m := range r.matches {
		if len(id) < len(prefix) || id[:len(prefix)] != prefix {
			continue
		}
		m.mu.Lock()
		r.endLocked(m)
		m.mu.Unlock()
		delete(r.matches, id)
		cleared++
	}
	for id := range r.orderings {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			delete(r.orderings, id)
		}
	}
	return cleared
}

// ResetAll clears the whole registry. Returns the number cleared.
func (r *Registry) ResetAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := len(r.matches)
	for id, m := range r.matches {
		m.mu.Lock()
		r.endLocked(m)
		m.mu.Unlock()
		delete(r.matches, id)
		delete(r.orderings, id)
	}
	return cleared
}

// Counts reports registry occupancy
func (r *Registry) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := 0
	for _, m := range r.matches {
		m.mu.Lock()
		sessions += len(m.endpoints)
		m.mu.Unlock()
	}
	return Counts{Matches: len(r.matches), Sessions: sessions}
}
