package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	defaultRankingLimit = 200
	maxRankingLimit     = 1000
)

const listingColumns = `id, seller_id, title, slug, currency, is_privileged, popularity_score,
	view_count, click_count, sales_count, revenue, is_boosted, boost_type,
	boost_started_at, boost_expires_at, created_at, updated_at`

type Params struct {
	fx.In

	DB *gorm.DB
}

type store struct {
	db *gorm.DB
}

func NewStore(p Params) catalogdomain.Store {
	return &store{db: p.DB}
}

func (s *store) GetListing(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	return s.getListing(ctx, conn, id, "")
}

// GetListingForUpdate locks the listing row until the surrounding transaction ends.
func (s *store) GetListingForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	if conn == nil {
		conn = s.db
	}
	return s.getListing(ctx, conn, id, db.RowLockClause(conn))
}

func (s *store) getListing(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock string) (*catalogdomain.Listing, error) {
	if conn == nil {
		conn = s.db
	}
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ? LIMIT 1`
	if lock != "" {
		query += " " + lock
	}

	var item catalogdomain.Listing
	if err := conn.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, catalogdomain.ErrListingNotFound
	}
	return &item, nil
}

func (s *store) SetBoostProjection(ctx context.Context, conn *gorm.DB, id snowflake.ID, projection catalogdomain.Projection, now time.Time) error {
	if conn == nil {
		conn = s.db
	}
	var boostType *string
	if projection.IsBoosted && strings.TrimSpace(projection.Type) != "" {
		value := projection.Type
		boostType = &value
	}
	startedAt := projection.StartedAt
	expiresAt := projection.ExpiresAt
	if !projection.IsBoosted {
		startedAt, expiresAt = nil, nil
	}

	res := conn.WithContext(ctx).Exec(
		`UPDATE listings
		 SET is_boosted = ?, boost_type = ?, boost_started_at = ?, boost_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		projection.IsBoosted,
		boostType,
		startedAt,
		expiresAt,
		now,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return catalogdomain.ErrListingNotFound
	}
	return nil
}

func (s *store) GetBasePopularityScore(ctx context.Context, conn *gorm.DB, id snowflake.ID) (float64, error) {
	listing, err := s.GetListing(ctx, conn, id)
	if err != nil {
		return 0, err
	}
	return listing.PopularityScore, nil
}

// ListForRanking returns candidate listings in no particular order.
func (s *store) ListForRanking(ctx context.Context, filter catalogdomain.RankingFilter) ([]catalogdomain.Listing, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	if limit > maxRankingLimit {
		limit = maxRankingLimit
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	args := make([]any, 0, 2)
	if sellerID := strings.TrimSpace(filter.SellerID); sellerID != "" {
		query += ` WHERE seller_id = ?`
		args = append(args, sellerID)
	}
	query += ` ORDER BY is_privileged DESC, is_boosted DESC, popularity_score DESC, id ASC LIMIT ?`
	args = append(args, limit)

	var items []catalogdomain.Listing
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
