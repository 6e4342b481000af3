package web

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"banner-text-advisor/internal/advisor"
	"banner-text-advisor/internal/suggestion"
)

// ModelFactory builds a model client bound to one API key.
type ModelFactory func(ctx context.Context, apiKey string) (advisor.Model, error)

type advisorCacheOptions struct {
	newModel      ModelFactory
	defaultAPIKey string
	interpreter   *suggestion.Interpreter
	structured    bool
	logger        *slog.Logger
}

// advisorCache holds one advisor per session that entered its own key, plus
// a shared advisor for the server-wide key. Keys never leave this struct.
type advisorCache struct {
	opts advisorCacheOptions

	mu        sync.Mutex
	bySession map[string]*advisor.Advisor
	shared    *advisor.Advisor
}

func newAdvisorCache(opts advisorCacheOptions) *advisorCache {
	opts.defaultAPIKey = strings.TrimSpace(opts.defaultAPIKey)
	return &advisorCache{
		opts:      opts,
		bySession: make(map[string]*advisor.Advisor),
	}
}

func (c *advisorCache) build(ctx context.Context, apiKey string) (*advisor.Advisor, error) {
	model, err := c.opts.newModel(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	return advisor.New(advisor.Options{
		Model:       model,
		Interpreter: c.opts.interpreter,
		Structured:  c.opts.structured,
		Logger:      c.opts.logger,
	})
}

// set binds apiKey to the session. An empty key removes the binding.
func (c *advisorCache) set(ctx context.Context, sessionID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		c.mu.Lock()
		delete(c.bySession, sessionID)
		c.mu.Unlock()
		return nil
	}

	a, err := c.build(ctx, apiKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.bySession[sessionID] = a
	c.mu.Unlock()
	return nil
}

// get returns the session's advisor, falling back to the shared one. The
// boolean is false when no key is available.
func (c *advisorCache) get(ctx context.Context, sessionID string) (*advisor.Advisor, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.bySession[sessionID]; ok {
		return a, true, nil
	}
	if c.opts.defaultAPIKey == "" {
		return nil, false, nil
	}
	if c.shared == nil {
		a, err := c.build(ctx, c.opts.defaultAPIKey)
		if err != nil {
			return nil, false, err
		}
		c.shared = a
	}
	return c.shared, true, nil
}

// hasKey reports whether the session has a key of its own or can use the
// server-wide one.
func (c *advisorCache) hasKey(sessionID string) (own, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, own = c.bySession[sessionID]
	return own, own || c.opts.defaultAPIKey != ""
}

func (c *advisorCache) prune(keep func(sessionID string) bool) int {
	c.mu.Lock()
	ids := make([]string, 0, len(c.bySession))
	for id := range c.bySession {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if keep(id) {
			continue
		}
		c.mu.Lock()
		delete(c.bySession, id)
		c.mu.Unlock()
		removed++
	}
	return removed
}
