// internal/protocol/messages.go
// Wire frame types shared by the session layer and the match engine.
// Frames are UTF-8 JSON with a "type" discriminator in SCREAMING_SNAKE_CASE.

package protocol

import (
	"encoding/json"
	"fmt"
)

// Server-to-client frame types
const (
	TypeAssign       = "ASSIGN"
	TypeTurnStart    = "TURN_START"
	TypeTurnResult   = "TURN_RESULT"
	TypeMatchResult  = "MATCH_RESULT"
	TypeOpponentLeft = "OPPONENT_LEFT"
	TypeError        = "ERROR"
)

// Client-to-server frame types
const (
	TypeHeartbeat     = "HEARTBEAT"
	TypeReadyForRound = "READY_FOR_ROUND"
	TypeSdpOffer      = "SDP_OFFER"
	TypeSdpAnswer     = "SDP_ANSWER"
	TypeIce           = "ICE"
	TypeCommitHashes  = "COMMIT_HASHES"
	TypeReveal        = "REVEAL"
)

// Stable wire error codes
const (
	CodeOK            = "OK"
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnsupported   = "UNSUPPORTED"
	CodeUnimplemented = "UNIMPLEMENTED"
	CodeInvalidReveal = "INVALID_REVEAL"
)

// Peer describes the opposing participant in an assignment
type Peer struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// RTCConfig carries TURN server hints for the peer-to-peer leg
type RTCConfig struct {
	Turns []string `json:"turns"`
}

// Assign delivers a match seat to a connected session
type Assign struct {
	Type    string    `json:"type"`
	MatchID string    `json:"match_id"`
	Role    string    `json:"role"`
	Peer    Peer      `json:"peer"`
	RTC     RTCConfig `json:"rtc"`
}

// TurnStart announces a new turn with its absolute deadline. NowMsEpoch is
// the server clock at emission time so clients can compute their offset.
type TurnStart struct {
	Type            string `json:"type"`
	MatchID         string `json:"match_id"`
	Turn            int    `json:"turn"`
	DeadlineMsEpoch int64  `json:"deadline_ms_epoch"`
	NowMsEpoch      int64  `json:"now_ms_epoch"`
}

// TurnResult is the canonical per-turn outcome fanned out to both sessions
type TurnResult struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Turn    int    `json:"turn"`
	Result  string `json:"result"`
	// retained for backward-compat with older clients
	AI bool `json:"ai"`
	// which participant(s) were substituted this turn; empty means none
	AIForDids []string `json:"ai_for_dids"`
	P1Move    string   `json:"p1_move"`
	P2Move    string   `json:"p2_move"`
}

// MatchResult announces the winning role once a score reaches five
type MatchResult struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
}

// OpponentLeft tells the remaining session its peer detached
type OpponentLeft struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// ErrorMsg is the structured per-frame error reply; code OK doubles as the
// heartbeat acknowledgement
type ErrorMsg struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Heartbeat is an empty keepalive frame
type Heartbeat struct{}

// ReadyForRound bootstraps a match for flows that skip the queue
type ReadyForRound struct {
	TID   string `json:"tid"`
	Round int    `json:"round"`
}

// SdpOffer is relayed verbatim between the sessions of a match
type SdpOffer struct {
	MatchID string `json:"match_id"`
	SDP     string `json:"sdp"`
}

// SdpAnswer is relayed verbatim between the sessions of a match
type SdpAnswer struct {
	MatchID string `json:"match_id"`
	SDP     string `json:"sdp"`
}

// Ice is relayed verbatim between the sessions of a match
type Ice struct {
	MatchID   string `json:"match_id"`
	Candidate string `json:"candidate"`
}

// CommitHashes is the wire-level intake of per-turn commitment digests
type CommitHashes struct {
	MatchID string   `json:"match_id"`
	Hashes  []string `json:"hashes"`
}

// Reveal discloses a participant's pick for a turn
type Reveal struct {
	MatchID string `json:"match_id"`
	Turn    int    `json:"turn"`
	Move    string `json:"move_"`
	Nonce   string `json:"nonce"`
}

// ParseClient decodes a client frame into its typed representation.
// An unknown type tag or malformed JSON is a parse error; the caller maps
// it to a BAD_REQUEST frame.
func ParseClient(data []byte) (interface{}, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	var msg interface{}
	switch envelope.Type {
	case TypeHeartbeat:
		msg = &Heartbeat{}
	case TypeReadyForRound:
		msg = &ReadyForRound{}
	case TypeSdpOffer:
		msg = &SdpOffer{}
	case TypeSdpAnswer:
		msg = &SdpAnswer{}
	case TypeIce:
		msg = &Ice{}
	case TypeCommitHashes:
		msg = &CommitHashes{}
	case TypeReveal:
		msg = &Reveal{}
	default:
		return nil, fmt.Errorf("unknown frame type %q", envelope.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
	}
	return msg, nil
}

// MustMarshal encodes a server frame, panicking on the impossible case of a
// non-serialisable struct
func MustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal frame: %v", err))
	}
	return data
}

// NewError builds an ERROR frame
func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Msg: msg}
}
