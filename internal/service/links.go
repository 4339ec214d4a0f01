package service

import (
	"context"
	"log/slog"

	qrcode "github.com/skip2/go-qrcode"

	"shortlink/internal/types"
)

// LinksStore is the CRUD surface for existing links.
type LinksStore interface {
	GetLink(ctx context.Context, id int64) (*types.Link, error)
	GetDomain(ctx context.Context, id int64) (*types.Domain, error)
	ListLinksByUser(ctx context.Context, userID int64) ([]types.Link, error)
	UpdateLink(ctx context.Context, id int64, customName, destination string) error
	SetLinkAvailable(ctx context.Context, id int64, available bool) error
	DeleteLink(ctx context.Context, id int64, purge func(linkIDs []int64) error) error
}

type Links struct {
	store     LinksStore
	analytics HistoryPurger
	cache     ResolveCache
}

func NewLinks(store LinksStore, analytics HistoryPurger, cache ResolveCache) *Links {
	return &Links{store: store, analytics: analytics, cache: cache}
}

func (l *Links) Get(ctx context.Context, id int64) (*types.Link, error) {
	return l.store.GetLink(ctx, id)
}

func (l *Links) ListByUser(ctx context.Context, userID int64) ([]types.Link, error) {
	return l.store.ListLinksByUser(ctx, userID)
}

// IsOwner reports whether userID owns the link. Anonymous links have no
// owner.
func (l *Links) IsOwner(ctx context.Context, linkID, userID int64) (bool, error) {
	link, err := l.store.GetLink(ctx, linkID)
	if err != nil {
		return false, err
	}
	return link.UserID.Valid && link.UserID.Int64 == userID, nil
}

// Update changes the custom label and, when non-empty, the destination.
// An empty destination leaves the current one in place.
func (l *Links) Update(ctx context.Context, id int64, customName, destination string) error {
	if destination != "" {
		if err := validateDestination(destination); err != nil {
			return err
		}
	}
	if err := l.store.UpdateLink(ctx, id, customName, destination); err != nil {
		return err
	}
	l.invalidate(ctx, id)
	return nil
}

// SetAvailable soft-enables or soft-disables a link. Disabling drops the
// cache entry so the link stops resolving immediately.
func (l *Links) SetAvailable(ctx context.Context, id int64, available bool) error {
	if err := l.store.SetLinkAvailable(ctx, id, available); err != nil {
		return err
	}
	l.invalidate(ctx, id)
	return nil
}

// Delete removes the link and its click history together; the purge runs
// inside the row-delete transaction.
func (l *Links) Delete(ctx context.Context, id int64) error {
	link, err := l.store.GetLink(ctx, id)
	if err != nil {
		return err
	}
	domain, err := l.store.GetDomain(ctx, link.DomainID)
	if err != nil {
		return err
	}

	if err := l.store.DeleteLink(ctx, id, func(ids []int64) error {
		return l.analytics.PurgeLinkHistories(ctx, ids)
	}); err != nil {
		return err
	}

	if l.cache != nil {
		if err := l.cache.DeleteResolved(ctx, domain.Name, link.ShortName); err != nil {
			slog.Warn("failed to invalidate cache entry", "error", err, "link_id", id)
		}
	}
	return nil
}

// QRCode renders the short URL of a link as a PNG.
func (l *Links) QRCode(ctx context.Context, id int64, size int) ([]byte, error) {
	link, err := l.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	domain, err := l.store.GetDomain(ctx, link.DomainID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	short := types.ShortLink{ShortName: link.ShortName, DomainName: domain.Name}
	return qrcode.Encode(short.URL(), qrcode.Medium, size)
}

func (l *Links) invalidate(ctx context.Context, id int64) {
	if l.cache == nil {
		return
	}
	link, err := l.store.GetLink(ctx, id)
	if err != nil {
		return
	}
	domain, err := l.store.GetDomain(ctx, link.DomainID)
	if err != nil {
		return
	}
	if err := l.cache.DeleteResolved(ctx, domain.Name, link.ShortName); err != nil {
		slog.Warn("failed to invalidate cache entry", "error", err, "link_id", id)
	}
}
