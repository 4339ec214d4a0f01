package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"shortlink/internal/types"
)

// AccountsStore is the persistence surface of the account lifecycle.
type AccountsStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*types.User, error)
	GetUser(ctx context.Context, id int64) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUser(ctx context.Context, id int64, name, email string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64, purge func(linkIDs []int64) error) error
	SetUserStatus(ctx context.Context, userID int64, status types.UserStatus, purge func(linkIDs []int64) error) ([]int64, error)
	GetLink(ctx context.Context, id int64) (*types.Link, error)
	GetDomain(ctx context.Context, id int64) (*types.Domain, error)
	ListLinksByUser(ctx context.Context, userID int64) ([]types.Link, error)
}

// HistoryPurger deletes click history for a set of links.
type HistoryPurger interface {
	PurgeLinkHistories(ctx context.Context, linkIDs []int64) error
}

type Accounts struct {
	store     AccountsStore
	analytics HistoryPurger
	cache     ResolveCache
}

func NewAccounts(store AccountsStore, analytics HistoryPurger, cache ResolveCache) *Accounts {
	return &Accounts{store: store, analytics: analytics, cache: cache}
}

func (a *Accounts) Register(ctx context.Context, name, email, password string) (*types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return a.store.CreateUser(ctx, name, email, string(hash))
}

// Authenticate checks email and password. A missing user and a wrong
// password are indistinguishable to the caller; a frozen or banned
// account cannot log in even with the right password.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	user, err := a.store.GetUserByEmail(ctx, email)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, types.ErrBadCredentials
	}
	if user.Status != types.StatusActive {
		return nil, types.ErrAccountBlocked
	}
	return user, nil
}

func (a *Accounts) UpdateProfile(ctx context.Context, id int64, name, email string) error {
	return a.store.UpdateUser(ctx, id, name, email)
}

func (a *Accounts) UpdatePassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return a.store.UpdateUserPassword(ctx, id, string(hash))
}

// Freeze sets status=freezed and disables every link the user owns, in one
// transaction. Click history stays.
func (a *Accounts) Freeze(ctx context.Context, userID int64) error {
	linkIDs, err := a.store.SetUserStatus(ctx, userID, types.StatusFreezed, nil)
	if err != nil {
		return err
	}
	a.invalidateLinks(ctx, linkIDs)
	slog.Info("user frozen", "user_id", userID, "links_disabled", len(linkIDs))
	return nil
}

// Ban freezes and additionally purges all click history for the user's
// links. The purge runs inside the status transaction: if it fails nothing
// changes. Destructive and irreversible for analytics data; the links
// themselves survive, disabled.
func (a *Accounts) Ban(ctx context.Context, userID int64) error {
	linkIDs, err := a.store.SetUserStatus(ctx, userID, types.StatusBanned, func(ids []int64) error {
		return a.analytics.PurgeLinkHistories(ctx, ids)
	})
	if err != nil {
		return err
	}
	a.invalidateLinks(ctx, linkIDs)
	slog.Info("user banned", "user_id", userID, "links_disabled", len(linkIDs))
	return nil
}

// Unban restores status=active only. Links stay disabled and must be
// re-enabled individually.
func (a *Accounts) Unban(ctx context.Context, userID int64) error {
	_, err := a.store.SetUserStatus(ctx, userID, types.StatusActive, nil)
	if err != nil {
		return err
	}
	slog.Info("user restored to active", "user_id", userID)
	return nil
}

// Delete removes the user, every owned link and all their click history.
// Cache keys are snapshotted before the row delete; afterwards the links
// cannot be resolved to (host, path) pairs anymore.
func (a *Accounts) Delete(ctx context.Context, userID int64) error {
	keys := a.snapshotResolveKeys(ctx, userID)

	if err := a.store.DeleteUser(ctx, userID, func(ids []int64) error {
		return a.analytics.PurgeLinkHistories(ctx, ids)
	}); err != nil {
		return err
	}

	for _, k := range keys {
		if err := a.cache.DeleteResolved(ctx, k.host, k.path); err != nil {
			slog.Warn("failed to invalidate cache entry", "error", err, "host", k.host, "path", k.path)
		}
	}
	slog.Info("user deleted", "user_id", userID)
	return nil
}

type resolveKey struct {
	host string
	path string
}

func (a *Accounts) snapshotResolveKeys(ctx context.Context, userID int64) []resolveKey {
	if a.cache == nil {
		return nil
	}
	links, err := a.store.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil
	}
	keys := make([]resolveKey, 0, len(links))
	for _, link := range links {
		domain, err := a.store.GetDomain(ctx, link.DomainID)
		if err != nil {
			continue
		}
		keys = append(keys, resolveKey{host: domain.Name, path: link.ShortName})
	}
	return keys
}

// invalidateLinks drops cached resolutions for the given links so a
// disabled link stops resolving immediately, not at TTL expiry.
func (a *Accounts) invalidateLinks(ctx context.Context, linkIDs []int64) {
	if a.cache == nil {
		return
	}
	for _, id := range linkIDs {
		link, err := a.store.GetLink(ctx, id)
		if err != nil {
			continue
		}
		domain, err := a.store.GetDomain(ctx, link.DomainID)
		if err != nil {
			continue
		}
		if err := a.cache.DeleteResolved(ctx, domain.Name, link.ShortName); err != nil {
			slog.Warn("failed to invalidate cache entry", "error", err, "link_id", id)
		}
	}
}
