// internal/services/container.go
// Service container provides dependency injection for all business logic
// services. This pattern makes testing easier and keeps services loosely
// coupled.

package services

import (
	"errors"
	"log"

	"github.com/nharan/TournamentRPS/internal/anchor"
	"github.com/nharan/TournamentRPS/internal/config"
	"github.com/nharan/TournamentRPS/internal/match"
	"github.com/nharan/TournamentRPS/internal/pairing"
	"github.com/nharan/TournamentRPS/internal/ticket"

	"github.com/redis/go-redis/v9"
)

// Container holds all service instances and provides them to handlers
type Container struct {
	Ticket   *ticket.Service
	Pairing  *pairing.Service
	Registry *match.Registry
	Anchor   *anchor.Sink
	// Cache is nil when no Redis address is configured
	Cache *CacheService
}

// NewContainer creates a new service container with all dependencies
func NewContainer(cfg *config.Config, logger *log.Logger) *Container {
	var cache *CacheService
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = NewCacheService(client, logger)
		if err := cache.Ping(); err != nil {
			logger.Printf("redis unavailable, rate limiting disabled: %v", err)
			cache = nil
		}
	}

	tickets := ticket.NewService(cfg.Auth.TicketSecret)
	registry := match.NewRegistry(cfg.Match.TurnDeadline, logger)
	sink := anchor.NewSink(cfg.External.AnchorURL, logger)
	pairer := pairing.NewService(tickets, registry, sink, logger)

	return &Container{
		Ticket:   tickets,
		Pairing:  pairer,
		Registry: registry,
		Anchor:   sink,
		Cache:    cache,
	}
}

// Common errors used across services
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)
