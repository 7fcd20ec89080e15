package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingStore struct {
	calls    int
	err      error
	listings []catalogdomain.Listing
}

func (s *countingStore) GetListing(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	return nil, catalogdomain.ErrListingNotFound
}

func (s *countingStore) GetListingForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	return nil, catalogdomain.ErrListingNotFound
}

func (s *countingStore) SetBoostProjection(ctx context.Context, db *gorm.DB, id snowflake.ID, projection catalogdomain.Projection, now time.Time) error {
	return nil
}

func (s *countingStore) GetBasePopularityScore(ctx context.Context, db *gorm.DB, id snowflake.ID) (float64, error) {
	return 0, nil
}

func (s *countingStore) ListForRanking(ctx context.Context, filter catalogdomain.RankingFilter) ([]catalogdomain.Listing, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

func TestTTLCache_Expires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Second)
	c.Set("skip", 2, 0)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)
	_, ok = c.Get("skip")
	assert.False(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Empty(t, c.items)
}

func TestTTLCache_SweepsExpiredOnSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	for _, seller := range []string{"s1", "s2", "s3"} {
		c.Set(seller, 1, time.Second)
	}
	assert.Equal(t, 3, c.Len())

	now = now.Add(2 * time.Second)
	c.Set("s4", 1, time.Minute)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("s4")
	assert.True(t, ok)
}

func TestTTLCache_CapsEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })
	c.maxEntries = 2

	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Minute)
	c.Set("a", 3, 2*time.Second)
	assert.Equal(t, 2, c.Len())

	c.Set("c", 4, time.Minute)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "soonest expiry is evicted first")
	got, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 4, got)
}

func TestRankingCandidates_CachesPerFilter(t *testing.T) {
	store := &countingStore{listings: []catalogdomain.Listing{{ID: snowflake.ID(1)}}}
	candidates := NewRankingCandidates(store, config.Config{RankingCacheTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		listings, err := candidates.List(ctx, catalogdomain.RankingFilter{SellerID: "seller-1"})
		require.NoError(t, err)
		assert.Len(t, listings, 1)
	}
	assert.Equal(t, 1, store.calls)

	_, err := candidates.List(ctx, catalogdomain.RankingFilter{SellerID: "seller-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestRankingCandidates_DisabledPassesThrough(t *testing.T) {
	store := &countingStore{}
	candidates := NewRankingCandidates(store, config.Config{})

	for i := 0; i < 2; i++ {
		_, err := candidates.List(context.Background(), catalogdomain.RankingFilter{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.calls)
}

func TestRankingCandidates_ErrorsAreNotCached(t *testing.T) {
	store := &countingStore{err: errors.New("db down")}
	candidates := NewRankingCandidates(store, config.Config{RankingCacheTTL: time.Minute})
	ctx := context.Background()

	_, err := candidates.List(ctx, catalogdomain.RankingFilter{})
	require.Error(t, err)

	store.err = nil
	_, err = candidates.List(ctx, catalogdomain.RankingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}
