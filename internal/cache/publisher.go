// SPDX-License-Identifier: MIT

// Package cache publishes engine snapshots to Redis so UI peers and sibling
// services can read rankings without touching the engine. Publishing is
// best-effort: a Redis outage never affects an evaluation tick.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// RankingsKey is where the latest ranked snapshot lives.
	RankingsKey = "atrwac:rankings"
	// StatusKey is where the latest status snapshot lives.
	StatusKey = "atrwac:status"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string        // Redis server address (host:port)
	Password string        // Redis password (optional)
	DB       int           // Redis database number
	TTL      time.Duration // snapshot expiry; zero keeps snapshots forever
}

// Publisher is a Redis-backed snapshot publisher.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	stats  struct {
		published atomic.Int64
		failures  atomic.Int64
	}
}

// NewPublisher creates a publisher and verifies connectivity.
func NewPublisher(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis")

	return &Publisher{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// Publish serialises value to JSON and stores it under key.
func (p *Publisher) Publish(key string, value any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(value)
	if err != nil {
		p.stats.failures.Add(1)
		p.logger.Warn().Err(err).Str("key", key).Msg("json marshal failed")
		return
	}

	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		p.stats.failures.Add(1)
		p.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}

	p.stats.published.Add(1)
}

// Published returns the number of successful publishes.
func (p *Publisher) Published() int64 { return p.stats.published.Load() }

// Failures returns the number of failed publishes.
func (p *Publisher) Failures() int64 { return p.stats.failures.Load() }

// Close closes the Redis connection.
func (p *Publisher) Close() error { return p.client.Close() }
