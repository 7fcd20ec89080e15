package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrListingNotFound = errors.New("listing_not_found")

type RankingFilter struct {
	SellerID string
	Limit    int
}

// Store reads listings and writes their boost projection. Methods taking a
// *gorm.DB participate in the caller's transaction.
//
//go:generate mockgen -source=store.go -destination=./mocks/mock_store.go -package=mocks
type Store interface {
	GetListing(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Listing, error)
	GetListingForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Listing, error)
	SetBoostProjection(ctx context.Context, db *gorm.DB, id snowflake.ID, projection Projection, now time.Time) error
	GetBasePopularityScore(ctx context.Context, db *gorm.DB, id snowflake.ID) (float64, error)
	ListForRanking(ctx context.Context, filter RankingFilter) ([]Listing, error)
}
