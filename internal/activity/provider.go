package activity

import (
	"context"
	"net/url"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/cache"
	"github.com/pulsearc/agent-core/internal/domain"
)

const enrichmentCacheTTL = 5 * time.Minute

// ActivityProvider wraps an OsEventListener with a small LRU of
// previously-resolved URL-hosts and document names, so a browser tab or
// office document that hasn't changed doesn't re-pay enrichment cost on
// every poll.
type ActivityProvider struct {
	listener  OsEventListener
	urlHosts  *cache.Cache[string, string]
	documents *cache.Cache[string, string]
	paused    bool
}

// NewActivityProvider wires listener behind a 5-minute-TTL, 256-entry
// enrichment cache for URL hosts and office document names.
func NewActivityProvider(listener OsEventListener) *ActivityProvider {
	return &ActivityProvider{
		listener:  listener,
		urlHosts:  cache.New[string, string](cache.Config{Policy: cache.PolicyTTL, MaxEntries: 256, DefaultTTL: enrichmentCacheTTL}),
		documents: cache.New[string, string](cache.Config{Policy: cache.PolicyTTL, MaxEntries: 256, DefaultTTL: enrichmentCacheTTL}),
	}
}

// Capture returns the current activity context, enriched with a cached or
// freshly-resolved URL host when the context carries a URL. While paused it
// returns a placeholder context without invoking the underlying listener.
func (p *ActivityProvider) Capture(ctx context.Context) (domain.ActivityContext, error) {
	if p.paused {
		return domain.ActivityContext{AppName: "Paused", WindowTitle: "Tracking Paused"}, nil
	}

	activity, err := p.listener.CaptureActive(ctx)
	if err != nil {
		return domain.ActivityContext{}, err
	}

	if activity.URL != "" {
		if _, ok := p.urlHosts.Get(activity.URL); !ok {
			if host, ok := extractHost(activity.URL); ok {
				p.urlHosts.Set(activity.URL, host, enrichmentCacheTTL)
			}
		}
	}

	return activity, nil
}

// URLHost returns the cached or freshly-extracted host for a URL, without
// requiring a full Capture round-trip — used by evidence extraction when
// deduplicating domains across a block's snapshots.
func (p *ActivityProvider) URLHost(rawURL string) (string, bool) {
	if host, ok := p.urlHosts.Get(rawURL); ok {
		return host, true
	}
	host, ok := extractHost(rawURL)
	if ok {
		p.urlHosts.Set(rawURL, host, enrichmentCacheTTL)
	}
	return host, ok
}

// Pause stops Capture from invoking the underlying listener.
func (p *ActivityProvider) Pause() { p.paused = true }

// Resume re-enables Capture.
func (p *ActivityProvider) Resume() { p.paused = false }

// IsPaused reports the current pause state.
func (p *ActivityProvider) IsPaused() bool { return p.paused }

// CachedDocumentName returns a previously-cached office document name for a
// bundle ID, if any.
func (p *ActivityProvider) CachedDocumentName(bundleID string) (string, bool) {
	return p.documents.Get(bundleID)
}

// CacheDocumentName stores an office document name resolved for bundleID.
func (p *ActivityProvider) CacheDocumentName(bundleID, document string) {
	p.documents.Set(bundleID, document, enrichmentCacheTTL)
}

func extractHost(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	return parsed.Hostname(), true
}
