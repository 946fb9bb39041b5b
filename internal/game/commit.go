// internal/game/commit.go
// Commit-hash binding between an earlier commitment and a later reveal.
// Intake exists at the wire schema level; the arbiter does not consult it.

package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// CommitHash computes the binding digest
// SHA-256(move || nonce || turn_be || match || participant), hex encoded.
func CommitHash(matchID, did string, turn uint32, move, nonce string) string {
	h := sha256.New()
	h.Write([]byte(move))
	h.Write([]byte(nonce))

	var turnBytes [4]byte
	binary.BigEndian.PutUint32(turnBytes[:], turn)
	h.Write(turnBytes[:])

	h.Write([]byte(matchID))
	h.Write([]byte(did))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyReveal checks a reveal against its earlier commitment
func VerifyReveal(commit, matchID, did string, turn uint32, move, nonce string) bool {
	return CommitHash(matchID, did, turn, move, nonce) == commit
}
