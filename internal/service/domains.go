package service

import (
	"context"
	"log/slog"

	"shortlink/internal/types"
)

// DomainsStore is the CRUD surface for hosting domains.
type DomainsStore interface {
	CreateDomain(ctx context.Context, name string) (*types.Domain, error)
	GetDomain(ctx context.Context, id int64) (*types.Domain, error)
	ListDomains(ctx context.Context) ([]types.Domain, error)
	ListLinksByDomain(ctx context.Context, domainID int64) ([]types.Link, error)
	SetDomainAvailable(ctx context.Context, id int64, available bool) error
	DeleteDomain(ctx context.Context, id int64, purge func(linkIDs []int64) error) error
}

type Domains struct {
	store     DomainsStore
	analytics HistoryPurger
	cache     ResolveCache
}

func NewDomains(store DomainsStore, analytics HistoryPurger, cache ResolveCache) *Domains {
	return &Domains{store: store, analytics: analytics, cache: cache}
}

func (d *Domains) Create(ctx context.Context, name string) (*types.Domain, error) {
	domain, err := d.store.CreateDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	slog.Info("domain created", "name", name)
	return domain, nil
}

func (d *Domains) List(ctx context.Context) ([]types.Domain, error) {
	return d.store.ListDomains(ctx)
}

// SetAvailable marks a domain selectable (or not) by the allocator.
// Existing links on an unavailable domain keep resolving.
func (d *Domains) SetAvailable(ctx context.Context, id int64, available bool) error {
	return d.store.SetDomainAvailable(ctx, id, available)
}

// Delete removes the domain, every link hosted on it, and their click
// history, all-or-nothing. Cache keys are snapshotted before the rows go;
// once deleted, the links can no longer be resolved to (host, path) pairs.
func (d *Domains) Delete(ctx context.Context, id int64) error {
	domain, err := d.store.GetDomain(ctx, id)
	if err != nil {
		return err
	}
	links, err := d.store.ListLinksByDomain(ctx, id)
	if err != nil {
		return err
	}

	if err := d.store.DeleteDomain(ctx, id, func(ids []int64) error {
		return d.analytics.PurgeLinkHistories(ctx, ids)
	}); err != nil {
		return err
	}

	if d.cache != nil {
		for _, link := range links {
			if err := d.cache.DeleteResolved(ctx, domain.Name, link.ShortName); err != nil {
				slog.Warn("failed to invalidate cache entry", "error", err, "link_id", link.ID)
			}
		}
	}
	slog.Info("domain deleted", "name", domain.Name, "links_removed", len(links))
	return nil
}
