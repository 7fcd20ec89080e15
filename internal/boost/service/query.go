package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/authorization"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/boost/refund"
	"github.com/smallbiznis/boostd/pkg/db/pagination"
)

func (s *Service) GetBoost(ctx context.Context, rawID string, actor authorization.Actor) (domain.BoostDetail, error) {
	if err := s.authorize(ctx, actor, authorization.ActionBoostView); err != nil {
		return domain.BoostDetail{}, err
	}
	id, err := parseID(rawID, domain.ErrInvalidBoostID)
	if err != nil {
		return domain.BoostDetail{}, err
	}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.BoostDetail{}, err
	}
	if actor.Role != authorization.RoleSystem {
		if err := s.ensureOwner(ctx, actor, record); err != nil {
			return domain.BoostDetail{}, err
		}
	}

	entries, err := s.ledger.ListByBoost(ctx, record.ID)
	if err != nil {
		return domain.BoostDetail{}, err
	}

	return domain.BoostDetail{
		Boost:         *record,
		Metrics:       metricsOf(*record, s.clock.Now().UTC()),
		LedgerEntries: entries,
	}, nil
}

func (s *Service) ListActiveBoosts(ctx context.Context, req domain.ListBoostsRequest) (domain.ListBoostsResponse, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostList); err != nil {
		return domain.ListBoostsResponse{}, err
	}

	filter := domain.ListFilter{SellerID: strings.TrimSpace(req.SellerID)}
	if !s.authz.IsPrivileged(ctx, req.Actor) {
		filter.SellerID = req.Actor.ID
	}

	switch status := strings.ToLower(strings.TrimSpace(req.Status)); status {
	case "":
		filter.Status = domain.BoostStatusActive
	case "all":
	default:
		if !domain.IsValidStatus(domain.BoostStatus(status)) {
			return domain.ListBoostsResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.BoostStatus(status)
	}
	if tier := strings.ToLower(strings.TrimSpace(req.Tier)); tier != "" {
		if !domain.IsValidTier(domain.Tier(tier)) {
			return domain.ListBoostsResponse{}, domain.ErrInvalidTier
		}
		filter.Tier = domain.Tier(tier)
	}
	if strings.TrimSpace(req.ListingID) != "" {
		listingID, err := parseID(req.ListingID, domain.ErrInvalidListingID)
		if err != nil {
			return domain.ListBoostsResponse{}, err
		}
		filter.ListingID = &listingID
	}

	now := s.clock.Now().UTC()
	stats, err := s.repo.Stats(ctx, s.db, filter, now)
	if err != nil {
		return domain.ListBoostsResponse{}, err
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListBoostsResponse{}, err
	}
	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.SortKey)
		if err != nil {
			return domain.ListBoostsResponse{}, pagination.ErrInvalidPageToken
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListBoostsResponse{}, pagination.ErrInvalidPageToken
		}
		filter.AfterCreatedAt = &createdAt
		filter.AfterID = afterID
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	filter.Limit = pageSize + 1
	records, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListBoostsResponse{}, err
	}

	records, pageInfo := pagination.BuildCursorPageInfo(records, pageSize, func(record domain.BoostRecord) pagination.Cursor {
		return pagination.Cursor{
			ID:      record.ID.String(),
			SortKey: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if records == nil {
		records = []domain.BoostRecord{}
	}

	return domain.ListBoostsResponse{
		PageInfo: pageInfo,
		Boosts:   records,
		Stats:    stats,
	}, nil
}

func metricsOf(record domain.BoostRecord, now time.Time) domain.BoostMetrics {
	var refundIfNow int64
	if domain.CanTransition(record.Status, domain.BoostStatusCancelled) {
		refundIfNow = refund.CalculateForRecord(record, now)
	}
	return domain.BoostMetrics{
		IsActive:      domain.IsActive(record, now),
		DaysRemaining: domain.DaysRemaining(record, now),
		UsedFraction:  domain.UsedFraction(record, now),
		ROI:           domain.ROI(record),
		Delta:         domain.PerformanceDelta(record),
		RefundIfNow:   refundIfNow,
	}
}
