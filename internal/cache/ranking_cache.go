package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/internal/config"
	"golang.org/x/sync/singleflight"
)

// RankingCandidates fronts catalog.ListForRanking on the hot read path.
// Cached rows may carry a stale boost projection for up to the TTL; ranking
// re-checks boost expiry against the clock, so an ended boost never ranks as
// boosted, while a fresh one shows up after at most one TTL.
type RankingCandidates struct {
	store catalogdomain.Store
	items Cache[string, []catalogdomain.Listing]
	ttl   time.Duration
	group singleflight.Group
}

func NewRankingCandidates(store catalogdomain.Store, cfg config.Config) *RankingCandidates {
	return &RankingCandidates{
		store: store,
		items: NewTTLCache[string, []catalogdomain.Listing](cfg.RankingCacheMaxEntries),
		ttl:   cfg.RankingCacheTTL,
	}
}

func (c *RankingCandidates) List(ctx context.Context, filter catalogdomain.RankingFilter) ([]catalogdomain.Listing, error) {
	if c.ttl <= 0 {
		return c.store.ListForRanking(ctx, filter)
	}

	key := cacheKey(filter.SellerID, strconv.Itoa(filter.Limit))
	if listings, ok := c.items.Get(key); ok {
		return listings, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		listings, err := c.store.ListForRanking(ctx, filter)
		if err != nil {
			return nil, err
		}
		c.items.Set(key, listings, c.ttl)
		return listings, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]catalogdomain.Listing), nil
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		values = append(values, strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(values, "|")
}
