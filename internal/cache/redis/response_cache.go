// Package redis implements the response cache on top of a Redis server.
// Responses are stored as JSON under a digest of the request content, so
// only byte-identical requests hit.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const defaultTTL = 1 * time.Hour

// ResponseCache implements the domain.ResponseCache interface.
type ResponseCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewResponseCache creates a new Redis-backed response cache.
// A non-positive ttl falls back to one hour.
func NewResponseCache(client *redis.Client, keyPrefix string, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResponseCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get retrieves a cached response for an identical earlier request.
func (c *ResponseCache) Get(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	key := c.cacheKey(req)
	logger := observability.FromContext(ctx)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		logger.Warn("cache get failed", observability.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var resp domain.CompletionResponse
	if unmarshalErr := json.Unmarshal(data, &resp); unmarshalErr != nil {
		logger.Warn("failed to unmarshal cached response", observability.Error(unmarshalErr))
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", unmarshalErr)
	}

	logger.Debug("cache hit", observability.String("key", key))
	return &resp, nil
}

// Set stores a response under the request's digest. A non-positive ttl uses
// the cache's configured default.
func (c *ResponseCache) Set(
	ctx context.Context,
	req *domain.CompletionRequest,
	resp *domain.CompletionResponse,
	ttl time.Duration,
) error {
	if req == nil || resp == nil {
		return errors.New("request and response cannot be nil")
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.client.Set(ctx, c.cacheKey(req), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// cacheKey digests the request content into a stable Redis key.
func (c *ResponseCache) cacheKey(req *domain.CompletionRequest) string {
	var b strings.Builder
	b.WriteString(req.Model)
	b.WriteString("\x00")
	b.WriteString(req.System)
	for _, msg := range req.EffectiveMessages() {
		b.WriteString("\x00")
		b.WriteString(msg.Role)
		b.WriteString(":")
		b.WriteString(msg.Content)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return c.keyPrefix + hex.EncodeToString(sum[:])
}
