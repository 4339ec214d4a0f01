package service

import (
	"context"
	"slices"
	"sort"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/types"
)

// fakeStore is an in-memory stand-in for the Postgres store, with the same
// conflict and cascade semantics.
type fakeStore struct {
	domains map[int64]*types.Domain
	links   map[int64]*types.Link
	users   map[int64]*types.User
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		domains: make(map[int64]*types.Domain),
		links:   make(map[int64]*types.Link),
		users:   make(map[int64]*types.User),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addDomain(name string, available bool) *types.Domain {
	d := &types.Domain{ID: f.id(), Name: name, Available: available, CreatedAt: time.Now()}
	f.domains[d.ID] = d
	return d
}

func (f *fakeStore) addUser(status types.UserStatus) *types.User {
	u := &types.User{ID: f.id(), Name: "user", Email: "u@example.com", Status: status, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) sortedLinkIDs() []int64 {
	ids := make([]int64, 0, len(f.links))
	for id := range f.links {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (f *fakeStore) PickRandomAvailableDomain(context.Context) (*types.Domain, error) {
	var ids []int64
	for id, d := range f.domains {
		if d.Available {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)
	return f.domains[ids[0]], nil
}

func (f *fakeStore) CreateLink(_ context.Context, link *types.Link) (*types.Link, error) {
	for _, l := range f.links {
		if l.DomainID == link.DomainID && l.ShortName == link.ShortName {
			return nil, types.ErrConflict
		}
	}
	created := *link
	created.ID = f.id()
	created.Available = true
	created.CreatedAt = time.Now()
	f.links[created.ID] = &created
	return &created, nil
}

func (f *fakeStore) GetLink(_ context.Context, id int64) (*types.Link, error) {
	l, ok := f.links[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) GetDomain(_ context.Context, id int64) (*types.Domain, error) {
	d, ok := f.domains[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*types.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetLinkByHostPath(_ context.Context, host, path string) (*types.Link, error) {
	for _, l := range f.links {
		d, ok := f.domains[l.DomainID]
		if ok && d.Name == host && l.ShortName == path && l.Available {
			cp := *l
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeStore) ListLinksByUser(_ context.Context, userID int64) ([]types.Link, error) {
	var out []types.Link
	for _, id := range f.sortedLinkIDs() {
		l := f.links[id]
		if l.UserID.Valid && l.UserID.Int64 == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLinksByDomain(_ context.Context, domainID int64) ([]types.Link, error) {
	var out []types.Link
	for _, id := range f.sortedLinkIDs() {
		l := f.links[id]
		if l.DomainID == domainID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) LinkIDsByUser(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for _, id := range f.sortedLinkIDs() {
		l := f.links[id]
		if l.UserID.Valid && l.UserID.Int64 == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) UpdateLink(_ context.Context, id int64, customName, destination string) error {
	l, ok := f.links[id]
	if !ok {
		return types.ErrNotFound
	}
	l.CustomName.String = customName
	l.CustomName.Valid = customName != ""
	if destination != "" {
		l.Destination = destination
	}
	return nil
}

func (f *fakeStore) SetLinkAvailable(_ context.Context, id int64, available bool) error {
	l, ok := f.links[id]
	if !ok {
		return types.ErrNotFound
	}
	l.Available = available
	return nil
}

func (f *fakeStore) DeleteLink(_ context.Context, id int64, purge func([]int64) error) error {
	if _, ok := f.links[id]; !ok {
		return types.ErrNotFound
	}
	if purge != nil {
		if err := purge([]int64{id}); err != nil {
			return err
		}
	}
	delete(f.links, id)
	return nil
}

func (f *fakeStore) CountLinks(_ context.Context, activeOnly bool) (int64, error) {
	var n int64
	for _, l := range f.links {
		if !activeOnly || l.Available {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountLinksByUser(_ context.Context, userID int64, activeOnly bool) (int64, error) {
	var n int64
	for _, l := range f.links {
		if l.UserID.Valid && l.UserID.Int64 == userID && (!activeOnly || l.Available) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountUsers(context.Context, time.Time, time.Time) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeStore) CreateUser(_ context.Context, name, email, passwordHash string) (*types.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, types.ErrConflict
		}
	}
	u := &types.User{ID: f.id(), Name: name, Email: email, PasswordHash: passwordHash, Status: types.StatusActive, CreatedAt: time.Now()}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeStore) UpdateUser(_ context.Context, id int64, name, email string) error {
	u, ok := f.users[id]
	if !ok {
		return types.ErrNotFound
	}
	u.Name = name
	u.Email = email
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return types.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// SetUserStatus mirrors the all-or-nothing transaction: nothing changes when
// the purge callback fails.
func (f *fakeStore) SetUserStatus(_ context.Context, userID int64, status types.UserStatus, purge func([]int64) error) ([]int64, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}

	var linkIDs []int64
	for _, id := range f.sortedLinkIDs() {
		l := f.links[id]
		if l.UserID.Valid && l.UserID.Int64 == userID {
			linkIDs = append(linkIDs, id)
		}
	}

	if purge != nil && len(linkIDs) > 0 {
		if err := purge(linkIDs); err != nil {
			return nil, err
		}
	}

	u.Status = status
	if status == types.StatusFreezed || status == types.StatusBanned {
		for _, id := range linkIDs {
			f.links[id].Available = false
		}
	}
	return linkIDs, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64, purge func([]int64) error) error {
	if _, ok := f.users[id]; !ok {
		return types.ErrNotFound
	}
	var linkIDs []int64
	for lid, l := range f.links {
		if l.UserID.Valid && l.UserID.Int64 == id {
			linkIDs = append(linkIDs, lid)
		}
	}
	if purge != nil && len(linkIDs) > 0 {
		if err := purge(linkIDs); err != nil {
			return err
		}
	}
	for _, lid := range linkIDs {
		delete(f.links, lid)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CreateDomain(_ context.Context, name string) (*types.Domain, error) {
	for _, d := range f.domains {
		if d.Name == name {
			return nil, types.ErrConflict
		}
	}
	d := f.addDomain(name, true)
	cp := *d
	return &cp, nil
}

func (f *fakeStore) ListDomains(context.Context) ([]types.Domain, error) {
	var ids []int64
	for id := range f.domains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]types.Domain, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.domains[id])
	}
	return out, nil
}

func (f *fakeStore) SetDomainAvailable(_ context.Context, id int64, available bool) error {
	d, ok := f.domains[id]
	if !ok {
		return types.ErrNotFound
	}
	d.Available = available
	return nil
}

func (f *fakeStore) DeleteDomain(_ context.Context, id int64, purge func([]int64) error) error {
	if _, ok := f.domains[id]; !ok {
		return types.ErrNotFound
	}
	var linkIDs []int64
	for lid, l := range f.links {
		if l.DomainID == id {
			linkIDs = append(linkIDs, lid)
		}
	}
	if purge != nil && len(linkIDs) > 0 {
		if err := purge(linkIDs); err != nil {
			return err
		}
	}
	for _, lid := range linkIDs {
		delete(f.links, lid)
	}
	delete(f.domains, id)
	return nil
}

// fakeAnalytics keeps click events in memory and reimplements the
// aggregation queries over them.
type fakeAnalytics struct {
	clicks   []types.ClickEvent
	purgeErr error
}

func (f *fakeAnalytics) PushClick(event types.ClickEvent) {
	f.clicks = append(f.clicks, event)
}

func (f *fakeAnalytics) inScope(c types.ClickEvent, linkIDs []int64, from, to time.Time) bool {
	if !from.IsZero() && c.CreatedAt.Before(from) {
		return false
	}
	if !to.IsZero() && !c.CreatedAt.Before(to) {
		return false
	}
	if len(linkIDs) == 0 {
		return true
	}
	return slices.Contains(linkIDs, c.LinkID)
}

func (f *fakeAnalytics) CountClicks(_ context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	var n uint64
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAnalytics) CountUniqueClicks(_ context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	seen := make(map[[2]any]struct{})
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			seen[[2]any{c.IPAddress, c.LinkID}] = struct{}{}
		}
	}
	return uint64(len(seen)), nil
}

func (f *fakeAnalytics) CountLinksWithClicks(_ context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	seen := make(map[int64]struct{})
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			seen[c.LinkID] = struct{}{}
		}
	}
	return uint64(len(seen)), nil
}

func (f *fakeAnalytics) DailyCounts(_ context.Context, linkIDs []int64, from, to time.Time) (map[string]uint64, error) {
	out := make(map[string]uint64)
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			out[c.CreatedAt.Format("2006-01-02")]++
		}
	}
	return out, nil
}

func (f *fakeAnalytics) HourlyCounts(_ context.Context, linkIDs []int64, from, to time.Time) ([24]uint64, error) {
	var hours [24]uint64
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			hours[c.CreatedAt.Hour()]++
		}
	}
	return hours, nil
}

func (f *fakeAnalytics) TopByDimension(_ context.Context, dim types.Dimension, linkIDs []int64, from, to time.Time, limit int) ([]types.TopEntry, error) {
	groups := make(map[string]map[string]struct{})
	for _, c := range f.clicks {
		if !f.inScope(c, linkIDs, from, to) {
			continue
		}
		var label string
		switch dim {
		case types.ByCountry:
			label = c.CountryName
		case types.ByBrowser:
			label = c.Browser
		case types.ByOS:
			label = c.OS
		}
		if groups[label] == nil {
			groups[label] = make(map[string]struct{})
		}
		groups[label][c.IPAddress] = struct{}{}
	}

	entries := make([]types.TopEntry, 0, len(groups))
	for label, ips := range groups {
		entries = append(entries, types.TopEntry{Label: label, Count: uint64(len(ips))})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Label < entries[j].Label
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeAnalytics) TopLinks(_ context.Context, linkIDs []int64, from, to time.Time, limit int) ([]types.TopLink, error) {
	counts := make(map[int64]uint64)
	for _, c := range f.clicks {
		if f.inScope(c, linkIDs, from, to) {
			counts[c.LinkID]++
		}
	}
	links := make([]types.TopLink, 0, len(counts))
	for id, n := range counts {
		links = append(links, types.TopLink{LinkID: id, Clicks: n})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Clicks != links[j].Clicks {
			return links[i].Clicks > links[j].Clicks
		}
		return links[i].LinkID < links[j].LinkID
	})
	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (f *fakeAnalytics) PurgeLinkHistories(_ context.Context, linkIDs []int64) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	kept := f.clicks[:0]
	for _, c := range f.clicks {
		if !slices.Contains(linkIDs, c.LinkID) {
			kept = append(kept, c)
		}
	}
	f.clicks = kept
	return nil
}

type fakeCache struct {
	entries map[string]*types.LinkCache
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*types.LinkCache)}
}

func (f *fakeCache) GetResolved(_ context.Context, host, path string) (*types.LinkCache, error) {
	lc, ok := f.entries[host+"/"+path]
	if !ok {
		return nil, cache.ErrMiss
	}
	return lc, nil
}

func (f *fakeCache) SetResolved(_ context.Context, host, path string, lc *types.LinkCache, _ time.Duration) error {
	f.entries[host+"/"+path] = lc
	return nil
}

func (f *fakeCache) DeleteResolved(_ context.Context, host, path string) error {
	delete(f.entries, host+"/"+path)
	return nil
}
