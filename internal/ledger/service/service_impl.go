package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/boostd/internal/clock"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.writer"),
		genID:      p.GenID,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req ledgerdomain.RecordRequest) (ledgerdomain.LedgerEntry, bool, error) {
	entry, err := s.normalize(req)
	if err != nil {
		return ledgerdomain.LedgerEntry{}, false, err
	}
	if tx == nil {
		tx = s.db
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "boost_id"}, {Name: "type"}, {Name: "source_ref"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return ledgerdomain.LedgerEntry{}, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := s.findBySource(ctx, tx, entry.BoostID, entry.Type, entry.SourceRef)
		if err != nil {
			return ledgerdomain.LedgerEntry{}, false, err
		}
		s.log.Debug("ledger entry already recorded",
			zap.String("boost_id", entry.BoostID.String()),
			zap.String("type", string(entry.Type)),
			zap.String("transaction_id", existing.TransactionID),
		)
		return existing, false, nil
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(entry.Type))
	}
	return entry, true, nil
}

func (s *Service) ListByBoost(ctx context.Context, boostID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	if boostID == 0 {
		return nil, ledgerdomain.ErrInvalidBoost
	}
	var entries []ledgerdomain.LedgerEntry
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, transaction_id, type, boost_id, listing_id, seller_id, amount, currency,
		 source_ref, occurred_at, created_at
		 FROM boost_ledger_entries
		 WHERE boost_id = ?
		 ORDER BY occurred_at ASC, id ASC`,
		boostID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) findBySource(ctx context.Context, db *gorm.DB, boostID snowflake.ID, entryType ledgerdomain.EntryType, sourceRef string) (ledgerdomain.LedgerEntry, error) {
	var entry ledgerdomain.LedgerEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, transaction_id, type, boost_id, listing_id, seller_id, amount, currency,
		 source_ref, occurred_at, created_at
		 FROM boost_ledger_entries
		 WHERE boost_id = ? AND type = ? AND source_ref = ?
		 LIMIT 1`,
		boostID,
		entryType,
		sourceRef,
	).Scan(&entry).Error
	return entry, err
}

func (s *Service) normalize(req ledgerdomain.RecordRequest) (ledgerdomain.LedgerEntry, error) {
	if !ledgerdomain.IsValidEntryType(req.Type) {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidEntryType
	}
	if req.BoostID == 0 {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidBoost
	}
	if req.ListingID == 0 {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidListing
	}
	sellerID := strings.TrimSpace(req.SellerID)
	if sellerID == "" {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidSeller
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidCurrency
	}
	sourceRef := strings.TrimSpace(req.SourceRef)
	if sourceRef == "" {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidSourceRef
	}
	if req.OccurredAt.IsZero() {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidOccurredAt
	}

	amount := req.Amount
	if amount < 0 {
		amount = -amount
	}
	if amount == 0 {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidAmount
	}
	if req.Type == ledgerdomain.EntryTypeBoostRefund {
		amount = -amount
	}

	return ledgerdomain.LedgerEntry{
		ID:            s.genID.Generate(),
		TransactionID: newTransactionID(req.Type),
		Type:          req.Type,
		BoostID:       req.BoostID,
		ListingID:     req.ListingID,
		SellerID:      sellerID,
		Amount:        amount,
		Currency:      currency,
		SourceRef:     sourceRef,
		OccurredAt:    req.OccurredAt.UTC(),
		CreatedAt:     s.clock.Now(),
	}, nil
}

func newTransactionID(t ledgerdomain.EntryType) string {
	return ledgerdomain.TransactionPrefix(t) + "-" + ulid.Make().String()
}

