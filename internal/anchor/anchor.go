// internal/anchor/anchor.go
// Fire-and-forget notifications of round boundaries to an external writer.
// Failures are logged and swallowed; the system never stalls on a response.

package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// RoundAnchor is the payload posted at each round boundary
type RoundAnchor struct {
	TID         string `json:"tid"`
	Round       int    `json:"round"`
	AliveRoot   string `json:"aliveRoot"`
	PairingSeed string `json:"pairingSeed"`
	MerkleRoot  string `json:"merkleRoot"`
	PostedAt    string `json:"postedAt"`
}

// Sink posts round anchors to the configured external writer
type Sink struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewSink creates an anchor sink. An empty base URL disables posting.
func NewSink(baseURL string, logger *log.Logger) *Sink {
	return &Sink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// PostRoundAnchor sends one best-effort notification. Any error is logged
// and swallowed.
func (s *Sink) PostRoundAnchor(ctx context.Context, ra RoundAnchor) {
	if s.baseURL == "" {
		return
	}

	body, err := json.Marshal(ra)
	if err != nil {
		s.logger.Printf("anchor: failed to marshal round anchor: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/round_anchor", bytes.NewReader(body))
	if err != nil {
		s.logger.Printf("anchor: failed to build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Printf("anchor: post failed for %s round %d: %v", ra.TID, ra.Round, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Printf("anchor: writer returned %s for %s round %d", resp.Status, ra.TID, ra.Round)
		return
	}
	s.logger.Printf("anchor: posted %s round %d (%s)", ra.TID, ra.Round, fmt.Sprintf("alive=%.8s", ra.AliveRoot))
}
