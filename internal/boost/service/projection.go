package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// reconcileProjection rewrites the listing's boost fields from the records that
// still cover it. The projection is cleared unless an active record remains; its
// expiry extends over any scheduled successors.
func (s *Service) reconcileProjection(ctx context.Context, tx *gorm.DB, listingID snowflake.ID, now time.Time) error {
	records, err := s.repo.FindCurrentByListing(ctx, tx, listingID, now)
	if err != nil {
		return err
	}

	projection := buildProjection(records)
	if err := s.catalog.SetBoostProjection(ctx, tx, listingID, projection, now); err != nil {
		if errors.Is(err, catalogdomain.ErrListingNotFound) {
			s.log.Warn("listing missing for projection", zap.String("listing_id", listingID.String()))
			return nil
		}
		return err
	}
	return nil
}

func buildProjection(records []domain.BoostRecord) catalogdomain.Projection {
	var current *domain.BoostRecord
	var expires time.Time
	for i := range records {
		record := &records[i]
		if record.EndDate.After(expires) {
			expires = record.EndDate
		}
		if record.Status != domain.BoostStatusActive {
			continue
		}
		if current == nil || record.StartDate.Before(current.StartDate) {
			current = record
		}
	}
	if current == nil {
		return catalogdomain.ClearedProjection()
	}

	started := current.StartDate
	return catalogdomain.Projection{
		IsBoosted: true,
		Type:      string(current.Tier),
		StartedAt: &started,
		ExpiresAt: &expires,
	}
}
