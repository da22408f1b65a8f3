// Package iceservers fetches connectivity-server (STUN/TURN) credentials from
// an external provider and caches them for the process lifetime, refreshing
// periodically so long-lived relays do not hand out expired credentials.
package iceservers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

const (
	fetchTimeout    = 10 * time.Second
	maxResponseSize = 1 << 20
)

// response is the credential provider's body. Providers either wrap the list
// in an iceServers field or return the bare array.
type response struct {
	ICEServers []protocol.ICEServer `json:"iceServers"`
}

// Provider caches the most recent credential fetch. Reads never block on a
// fetch in progress: Current returns nil until the first fetch lands.
type Provider struct {
	url      string
	interval time.Duration
	client   *http.Client
	current  atomic.Pointer[[]protocol.ICEServer]
	log      zerolog.Logger
}

// New creates a provider for the given credential service URL. interval <= 0
// disables refresh after the initial fetch.
func New(url string, interval time.Duration, log zerolog.Logger) *Provider {
	return &Provider{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: fetchTimeout},
		log:      log,
	}
}

// Current returns the cached config, or nil when none has been fetched yet.
// Callers treat nil as "no externally provided connectivity servers".
func (p *Provider) Current() []protocol.ICEServer {
	servers := p.current.Load()
	if servers == nil {
		return nil
	}
	return *servers
}

// Start launches the fetch loop. The initial fetch retries with exponential
// backoff; a provider that never answers leaves the process in degraded mode
// rather than crashing it. Returns immediately.
func (p *Provider) Start(ctx context.Context) {
	if p.url == "" {
		p.log.Info().Msg("no credential service configured, running without ICE servers")
		return
	}
	go p.run(ctx)
}

func (p *Provider) run(ctx context.Context) {
	fetch := func() error {
		servers, err := p.fetch(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("credential fetch failed")
			return err
		}
		p.current.Store(&servers)
		p.log.Info().Int("servers", len(servers)).Msg("connectivity server config updated")
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 5 * time.Minute
	if err := backoff.Retry(fetch, backoff.WithContext(bo, ctx)); err != nil {
		p.log.Error().Err(err).Msg("credential fetch gave up, continuing without ICE servers")
	}

	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Refresh failures keep the previous snapshot.
			fetch()
		}
	}
}

func (p *Provider) fetch(ctx context.Context) ([]protocol.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build credential request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credential request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential service returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read credential response: %w", err)
	}

	var wrapped response
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.ICEServers != nil {
		return wrapped.ICEServers, nil
	}

	var bare []protocol.ICEServer
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("decode credential response: %w", err)
	}
	return bare, nil
}
