package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/geo"
	"shortlink/internal/metrics"
	"shortlink/internal/types"
	"shortlink/internal/useragent"
)

// TrackerStore resolves inbound (host, path) pairs to active links.
type TrackerStore interface {
	GetLinkByHostPath(ctx context.Context, host, path string) (*types.Link, error)
}

// ClickSink receives fully derived click events.
type ClickSink interface {
	PushClick(event types.ClickEvent)
}

// Tracker is the redirect hot path: Resolve, Derive, Persist, Respond.
type Tracker struct {
	store  TrackerStore
	cache  ResolveCache
	clicks ClickSink
	geo    geo.Resolver
}

func NewTracker(store TrackerStore, cache ResolveCache, clicks ClickSink, resolver geo.Resolver) *Tracker {
	return &Tracker{store: store, cache: cache, clicks: clicks, geo: resolver}
}

// Redirect resolves (host, path) to a destination URL and records the click.
// A miss returns types.ErrNotFound. Tracking is best-effort: the event goes
// to a buffered writer and never blocks or fails the redirect.
func (t *Tracker) Redirect(ctx context.Context, host, path, userAgent, ip string) (string, error) {
	host = stripPort(host)

	lc, err := t.resolve(ctx, host, path)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			metrics.RedirectsNotFound.Inc()
		}
		return "", err
	}

	attrs := useragent.Parse(userAgent)

	country, err := t.geo.Country(ctx, ip)
	if err != nil {
		slog.Debug("geolocation lookup failed", "error", err, "ip", ip)
		country = geo.FallbackCountry
	}

	t.clicks.PushClick(types.ClickEvent{
		LinkID:      lc.LinkID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Browser:     attrs.Browser,
		OS:          attrs.OS,
		Device:      attrs.Device,
		CountryName: country,
		CreatedAt:   time.Now(),
	})
	metrics.ClicksRecorded.Inc()
	metrics.RedirectsServed.Inc()

	return lc.Destination, nil
}

func (t *Tracker) resolve(ctx context.Context, host, path string) (*types.LinkCache, error) {
	if t.cache != nil {
		lc, err := t.cache.GetResolved(ctx, host, path)
		if err == nil {
			return lc, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("resolve cache lookup failed", "error", err, "host", host, "path", path)
		}
	}

	link, err := t.store.GetLinkByHostPath(ctx, host, path)
	if err != nil {
		return nil, err
	}

	lc := &types.LinkCache{LinkID: link.ID, UserID: link.UserID.Int64, Destination: link.Destination}
	if t.cache != nil {
		if err := t.cache.SetResolved(ctx, host, path, lc, resolveCacheTTL); err != nil {
			slog.Warn("failed to warm up cache", "error", err)
		}
	}
	return lc, nil
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
