package mushroomobserver

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"nemfreview/internal/config"
	"nemfreview/internal/services"
)

// Pool hands out one Client per API key. All clients share one rate limiter.
type Pool struct {
	cfg     *config.Config
	limiter *rate.Limiter
	opts    []Option

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool constructs a pool for cfg. opts apply to every client.
func NewPool(cfg *config.Config, opts ...Option) *Pool {
	return &Pool{
		cfg:     cfg,
		limiter: NewLimiter(cfg),
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Shared returns the client for the shared API key, used for lookups.
func (p *Pool) Shared() *Client {
	return p.client(strings.TrimSpace(p.cfg.MushroomObserver.APIKey))
}

// For returns the client that acts on behalf of holder. Holders without a
// personal or shared key fail with services.ErrConfiguration.
func (p *Pool) For(holder string) (*Client, error) {
	key := p.cfg.APIKeyFor(holder)
	if key == "" {
		return nil, services.Wrap(
			services.ErrConfiguration,
			"mushroomobserver",
			"client",
			fmt.Sprintf("no api key configured for %q", holder),
			nil,
		)
	}
	return p.client(key), nil
}

func (p *Pool) client(key string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[key]; ok {
		return client
	}
	opts := append([]Option{WithLimiter(p.limiter)}, p.opts...)
	client := New(p.cfg, key, opts...)
	p.clients[key] = client
	return client
}
