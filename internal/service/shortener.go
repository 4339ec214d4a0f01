package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"time"

	"shortlink/internal/metrics"
	"shortlink/internal/types"
)

const pathAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	DefaultPathLength = 7
	maxPathAttempts   = 5
	maxDestinationLen = 2048
	resolveCacheTTL   = 10 * time.Minute
)

var ErrInvalidURL = errors.New("invalid destination url")

// ShortenerStore is the persistence surface link creation needs.
type ShortenerStore interface {
	PickRandomAvailableDomain(ctx context.Context) (*types.Domain, error)
	CreateLink(ctx context.Context, link *types.Link) (*types.Link, error)
	GetUser(ctx context.Context, id int64) (*types.User, error)
}

// ResolveCache caches (host, path) resolutions for the redirect hot path.
type ResolveCache interface {
	GetResolved(ctx context.Context, host, path string) (*types.LinkCache, error)
	SetResolved(ctx context.Context, host, path string, lc *types.LinkCache, expiration time.Duration) error
	DeleteResolved(ctx context.Context, host, path string) error
}

type Shortener struct {
	store ShortenerStore
	cache ResolveCache
	rand  io.Reader
}

func NewShortener(store ShortenerStore, cache ResolveCache) *Shortener {
	return &Shortener{store: store, cache: cache, rand: rand.Reader}
}

// GenerateShortPath draws length characters uniformly from [a-zA-Z0-9]
// using the configured entropy source. Rejection sampling keeps the draw
// unbiased. Uniqueness is the caller's problem.
func (s *Shortener) GenerateShortPath(length int) (string, error) {
	if length <= 0 {
		length = DefaultPathLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		n := length - len(out)
		if _, err := io.ReadFull(s.rand, buf[:n]); err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			// 248 is the largest multiple of 62 below 256.
			if b >= 248 {
				continue
			}
			out = append(out, pathAlphabet[int(b)%len(pathAlphabet)])
		}
	}
	return string(out), nil
}

// Shorten runs the creation pipeline: allocate a random available domain,
// generate a path, insert. A (domain, path) collision retries with a fresh
// path up to maxPathAttempts before giving up with ErrPathSpaceExhausted.
func (s *Shortener) Shorten(ctx context.Context, destination, customName string, ownerID *int64, creatorIP string) (*types.ShortLink, error) {
	if err := validateDestination(destination); err != nil {
		return nil, err
	}

	if ownerID != nil {
		owner, err := s.store.GetUser(ctx, *ownerID)
		if err != nil {
			return nil, err
		}
		if owner.Status != types.StatusActive {
			return nil, types.ErrAccountBlocked
		}
	}

	domain, err := s.store.PickRandomAvailableDomain(ctx)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, types.ErrNoDomainAvailable
	}

	link := &types.Link{
		DomainID:    domain.ID,
		CreatorIP:   creatorIP,
		Destination: destination,
	}
	if ownerID != nil {
		link.UserID = sql.NullInt64{Int64: *ownerID, Valid: true}
	}
	if customName != "" {
		link.CustomName = sql.NullString{String: customName, Valid: true}
	}

	var created *types.Link
	for attempt := 0; attempt < maxPathAttempts; attempt++ {
		path, err := s.GenerateShortPath(DefaultPathLength)
		if err != nil {
			return nil, err
		}
		link.ShortName = path

		created, err = s.store.CreateLink(ctx, link)
		if errors.Is(err, types.ErrConflict) {
			slog.Warn("short path collision, retrying", "domain", domain.Name, "attempt", attempt+1)
			created = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if created == nil {
		return nil, types.ErrPathSpaceExhausted
	}

	if s.cache != nil {
		lc := &types.LinkCache{LinkID: created.ID, UserID: created.UserID.Int64, Destination: created.Destination}
		if err := s.cache.SetResolved(ctx, domain.Name, created.ShortName, lc, resolveCacheTTL); err != nil {
			slog.Warn("failed to warm up cache", "error", err)
		}
	}

	metrics.LinksCreated.Inc()
	slog.Info("short link created",
		"short_name", created.ShortName,
		"domain", domain.Name,
		"anonymous", ownerID == nil)

	return &types.ShortLink{ShortName: created.ShortName, DomainName: domain.Name}, nil
}

func validateDestination(destination string) error {
	if len(destination) == 0 || len(destination) > maxDestinationLen {
		return ErrInvalidURL
	}
	u, err := url.ParseRequestURI(destination)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
