// internal/ticket/ticket.go
// Short-lived signed session tickets binding a participant to a match

package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is the fixed validity window for issued tickets
const TTL = 10 * time.Minute

// ErrInvalidTicket covers malformed tokens, bad signatures and expiry
var ErrInvalidTicket = errors.New("invalid ticket")

// Claims binds a participant DID to a match id
type Claims struct {
	MatchID string `json:"mid"`
	jwt.RegisteredClaims
}

// Service issues and verifies tickets with a process-wide secret
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a ticket service signing with the given secret
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), ttl: TTL}
}

// Issue mints a signed ticket for (participant, match) valid for ten minutes
func (s *Service) Issue(did, matchID string) (string, error) {
	now := time.Now()
	claims := Claims{
		MatchID: matchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   did,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

// Verify decodes a ticket and returns its (participant, match) binding.
// Any failure, including expiry, is reported as ErrInvalidTicket.
func (s *Service) Verify(token string) (did, matchID string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", ErrInvalidTicket
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.MatchID == "" {
		return "", "", ErrInvalidTicket
	}
	return claims.Subject, claims.MatchID, nil
}
