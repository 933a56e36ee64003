// Package apiclient talks to one hospital backend: envelope handling, read
// cache, mutation guard and outbound throttling.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"hospops/internal/apperr"
	"hospops/internal/cache"
	"hospops/internal/metrics"
	"hospops/internal/ratelimit"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config describes one backend origin.
type Config struct {
	Name        string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	CacheTTL    time.Duration
	GuardWindow time.Duration
	RetryCount  int
	Throttle    ratelimit.ThrottleConfig
}

// Request is a single backend call.
type Request struct {
	// Entity names the cache and guard namespace, e.g. "receptions".
	Entity string
	// Op labels the call in logs and metrics.
	Op        string
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Multipart *Multipart
}

// Multipart is a form with one JSON part and an optional binary part.
type Multipart struct {
	Part     string
	Value    any
	FileName string
	File     io.Reader
}

// Client is constructed once per API base and shared by every repository of
// that backend. Its cache and guard are never shared across clients.
type Client struct {
	name     string
	http     *resty.Client
	cache    cache.Store
	guard    *ratelimit.Guard
	throttle *ratelimit.Throttle
	logger   *zerolog.Logger

	mu       sync.RWMutex
	cacheTTL time.Duration
	epochs   map[string]uint64
}

// New builds a client. A nil store gets a fresh in-process cache.
func New(cfg Config, store cache.Store, logger *zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if store == nil {
		store = cache.NewMemory()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("client", cfg.Name).Logger()

	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryReads).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		hc.SetHeader("x-api-key", cfg.APIKey)
	}

	return &Client{
		name:     cfg.Name,
		http:     hc,
		cache:    store,
		guard:    ratelimit.NewGuard(cfg.GuardWindow),
		throttle: ratelimit.NewThrottle(cfg.Throttle),
		logger:   &l,
		cacheTTL: cfg.CacheTTL,
		epochs:   make(map[string]uint64),
	}
}

// retryReads retries idempotent reads only; mutations are never replayed.
func retryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

func (c *Client) Name() string            { return c.name }
func (c *Client) Cache() cache.Store      { return c.cache }
func (c *Client) Guard() *ratelimit.Guard { return c.guard }

// CacheTTL returns the ttl applied to new read results.
func (c *Client) CacheTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheTTL
}

// SetCacheTTL changes the ttl for subsequent reads.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	c.mu.Lock()
	c.cacheTTL = ttl
	c.mu.Unlock()
}

// Invalidate drops every cached read of entity.
func (c *Client) Invalidate(ctx context.Context, entity string) {
	c.mu.Lock()
	c.epochs[entity]++
	c.mu.Unlock()

	n := c.cache.InvalidatePrefix(ctx, cache.EntityPrefix(entity))
	metrics.IncCacheInvalidation(entity)
	c.logger.Debug().Str("entity", entity).Int("removed", n).Msg("cache invalidated")
}

func (c *Client) epoch(entity string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epochs[entity]
}

// Do sends req and returns the unwrapped result payload.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, &apperr.TransportError{Message: "throttled request aborted", Err: err}
	}

	requestID := uuid.NewString()
	r := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Multipart != nil {
		if err := attachMultipart(r, req.Multipart); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, req.Path)
	elapsed := time.Since(start)

	log := c.logger.With().
		Str("request_id", requestID).
		Str("entity", req.Entity).
		Str("op", req.Op).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	raw, err := c.interpret(resp, err)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("api call failed")
	} else {
		log.Debug().Int("status", resp.StatusCode()).Dur("elapsed", elapsed).Msg("api call")
	}
	metrics.ObserveRequest(c.name, req.Entity, req.Op, outcome, elapsed)
	return raw, err
}

func (c *Client) interpret(resp *resty.Response, err error) (json.RawMessage, error) {
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		return nil, &apperr.TransportError{StatusCode: status, Err: err}
	}

	body := resp.Body()
	env, isEnvelope := parseEnvelope(body)
	if resp.IsError() {
		if isEnvelope && !*env.Success {
			return nil, &apperr.RequestFailedError{StatusCode: resp.StatusCode(), Message: env.Message}
		}
		return nil, &apperr.TransportError{
			StatusCode: resp.StatusCode(),
			Message:    extractMessage(body, resp.StatusCode()),
		}
	}
	if !isEnvelope {
		return nil, &apperr.TransportError{
			StatusCode: resp.StatusCode(),
			Message:    "response is not an envelope",
		}
	}
	if !*env.Success {
		return nil, &apperr.RequestFailedError{StatusCode: resp.StatusCode(), Message: env.Message}
	}
	return env.Result, nil
}

func attachMultipart(r *resty.Request, mp *Multipart) error {
	data, err := json.Marshal(mp.Value)
	if err != nil {
		return fmt.Errorf("encode %s part: %w", mp.Part, err)
	}
	r.SetMultipartField(mp.Part, "", "application/json", bytes.NewReader(data))
	if mp.File != nil {
		name := mp.FileName
		if name == "" {
			name = "upload"
		}
		r.SetFileReader("file", name, mp.File)
	}
	return nil
}

// Read performs a cached GET. cacheKey "" disables caching for the call.
func Read[T any](ctx context.Context, c *Client, req Request, cacheKey string) (T, error) {
	var out T
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if cacheKey != "" {
		if data, ok := c.cache.Get(ctx, cacheKey); ok {
			if err := json.Unmarshal(data, &out); err == nil {
				metrics.IncCacheHit(req.Entity)
				return out, nil
			}
		}
		metrics.IncCacheMiss(req.Entity)
	}

	epoch := c.epoch(req.Entity)
	raw, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	out, err = decodeResult[T](raw)
	if err != nil {
		return out, err
	}
	// A mutation that completed while this read was in flight makes the
	// result unfit for caching.
	if cacheKey != "" && c.epoch(req.Entity) == epoch {
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		c.cache.Set(ctx, cacheKey, raw, c.CacheTTL())
	}
	return out, nil
}

// Write performs a guarded mutation. On success every cached read of
// req.Entity is dropped. guardKey "" skips the guard.
func Write[T any](ctx context.Context, c *Client, req Request, guardKey string) (T, error) {
	var zero T
	if guardKey != "" {
		if err := c.guard.Allow(guardKey); err != nil {
			metrics.IncRateLimited(req.Entity)
			c.logger.Info().Str("key", guardKey).Msg("mutation rejected by guard")
			return zero, err
		}
	}
	raw, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	c.Invalidate(ctx, req.Entity)
	return decodeResult[T](raw)
}
