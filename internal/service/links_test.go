package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachepkg "shortlink/internal/cache"
	"shortlink/internal/types"
)

func linksFixture(t *testing.T) (*fakeStore, *fakeAnalytics, *fakeCache, *Links, *types.Link) {
	t.Helper()
	store := newFakeStore()
	analytics := &fakeAnalytics{}
	cache := newFakeCache()
	domain := store.addDomain("d1.test", true)
	link, err := store.CreateLink(context.Background(), &types.Link{
		DomainID:    domain.ID,
		Destination: "https://a.example",
		ShortName:   "abc1234",
	})
	require.NoError(t, err)
	return store, analytics, cache, NewLinks(store, analytics, cache), link
}

func TestLinksUpdate(t *testing.T) {
	store, _, cache, links, link := linksFixture(t)
	require.NoError(t, cache.SetResolved(context.Background(), "d1.test", "abc1234", &types.LinkCache{LinkID: link.ID, Destination: "https://a.example"}, 0))

	require.NoError(t, links.Update(context.Background(), link.ID, "launch", "https://b.example"))

	got, err := store.GetLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", got.Destination)
	assert.Equal(t, "launch", got.CustomName.String)

	// The stale cached destination must be gone.
	_, err = cache.GetResolved(context.Background(), "d1.test", "abc1234")
	assert.ErrorIs(t, err, cachepkg.ErrMiss)
}

func TestLinksUpdate_EmptyDestinationLeavesIt(t *testing.T) {
	store, _, _, links, link := linksFixture(t)

	require.NoError(t, links.Update(context.Background(), link.ID, "launch", ""))

	got, err := store.GetLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", got.Destination)
	assert.Equal(t, "launch", got.CustomName.String)
}

func TestLinksUpdate_InvalidDestination(t *testing.T) {
	_, _, _, links, link := linksFixture(t)
	err := links.Update(context.Background(), link.ID, "", "ftp://a.example")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestLinksSetAvailable_DropsCacheEntry(t *testing.T) {
	store, _, cache, links, link := linksFixture(t)
	require.NoError(t, cache.SetResolved(context.Background(), "d1.test", "abc1234", &types.LinkCache{LinkID: link.ID}, 0))

	require.NoError(t, links.SetAvailable(context.Background(), link.ID, false))

	got, err := store.GetLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)

	_, err = cache.GetResolved(context.Background(), "d1.test", "abc1234")
	assert.ErrorIs(t, err, cachepkg.ErrMiss)
}

func TestLinksDelete(t *testing.T) {
	store, analytics, cache, links, link := linksFixture(t)
	analytics.PushClick(click(link.ID, "1.1.1.1", "Germany", "Chrome", "Windows", time.Now()))
	require.NoError(t, cache.SetResolved(context.Background(), "d1.test", "abc1234", &types.LinkCache{LinkID: link.ID}, 0))

	require.NoError(t, links.Delete(context.Background(), link.ID))

	_, err := store.GetLink(context.Background(), link.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, analytics.clicks)
	_, err = cache.GetResolved(context.Background(), "d1.test", "abc1234")
	assert.ErrorIs(t, err, cachepkg.ErrMiss)
}

func TestLinksDelete_NotFound(t *testing.T) {
	_, _, _, links, _ := linksFixture(t)
	err := links.Delete(context.Background(), 999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLinksIsOwner(t *testing.T) {
	store, _, _, links, anonymous := linksFixture(t)
	user := store.addUser(types.StatusActive)

	owned, err := store.CreateLink(context.Background(), &types.Link{
		DomainID: anonymous.DomainID, Destination: "https://a.example", ShortName: "ownedln",
		UserID: sql.NullInt64{Int64: user.ID, Valid: true},
	})
	require.NoError(t, err)

	ok, err := links.IsOwner(context.Background(), owned.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = links.IsOwner(context.Background(), owned.ID, user.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)

	// The fixture link is anonymous: nobody owns it.
	ok, err = links.IsOwner(context.Background(), anonymous.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinksQRCode(t *testing.T) {
	_, _, _, links, link := linksFixture(t)

	png, err := links.QRCode(context.Background(), link.ID, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
