package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, record *domain.BoostRecord) error {
	return conn.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.BoostRecord, error) {
	return r.findOne(ctx, conn, id, "")
}

// FindByIDForUpdate locks the row for the surrounding transaction. With skipLocked a
// row held by another transaction reads as not found.
func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID, skipLocked bool) (*domain.BoostRecord, error) {
	lock := db.RowLockClause(conn)
	if skipLocked {
		lock = db.LockingClause(conn)
	}
	return r.findOne(ctx, conn, id, lock)
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock string) (*domain.BoostRecord, error) {
	query := `SELECT * FROM boost_records WHERE id = ? LIMIT 1`
	if lock != "" {
		query += " " + lock
	}
	var item domain.BoostRecord
	if err := conn.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) FindLiveByListing(ctx context.Context, conn *gorm.DB, listingID snowflake.ID, now time.Time) ([]domain.BoostRecord, error) {
	var items []domain.BoostRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM boost_records
		 WHERE listing_id = ? AND status IN ? AND end_date > ?
		 ORDER BY start_date ASC, id ASC`,
		listingID,
		[]domain.BoostStatus{domain.BoostStatusPending, domain.BoostStatusScheduled, domain.BoostStatusActive},
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindCurrentByListing returns the paid records that still cover or will cover the listing.
func (r *repo) FindCurrentByListing(ctx context.Context, conn *gorm.DB, listingID snowflake.ID, now time.Time) ([]domain.BoostRecord, error) {
	var items []domain.BoostRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM boost_records
		 WHERE listing_id = ? AND status IN ? AND end_date > ?
		 ORDER BY start_date ASC, id ASC`,
		listingID,
		[]domain.BoostStatus{domain.BoostStatusScheduled, domain.BoostStatusActive},
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindPaidByListing returns every active or scheduled record of the listing, lapsed or not.
func (r *repo) FindPaidByListing(ctx context.Context, conn *gorm.DB, listingID snowflake.ID) ([]domain.BoostRecord, error) {
	var items []domain.BoostRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM boost_records
		 WHERE listing_id = ? AND status IN ?
		 ORDER BY start_date ASC, id ASC`,
		listingID,
		[]domain.BoostStatus{domain.BoostStatusScheduled, domain.BoostStatusActive},
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) HasSuccessor(ctx context.Context, conn *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM boost_records WHERE renewed_from_id = ?`,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) TransactionRefExists(ctx context.Context, conn *gorm.DB, ref string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM boost_records WHERE transaction_ref = ?`,
		ref,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]domain.BoostRecord, error) {
	where, args := filterClause(filter)
	if filter.AfterCreatedAt != nil {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, *filter.AfterCreatedAt, *filter.AfterCreatedAt, filter.AfterID)
	}

	query := `SELECT * FROM boost_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var items []domain.BoostRecord
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Stats(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, now time.Time) (domain.BoostStats, error) {
	where, args := filterClause(filter)
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var totals struct {
		Count        int64
		TotalSpend   int64
		AutoRenewing int64
		Expiring     int64
	}
	totalArgs := append([]any{true, now, now.Add(24 * time.Hour)}, args...)
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count,
			COALESCE(SUM(price), 0) AS total_spend,
			COALESCE(SUM(CASE WHEN auto_renew_enabled = ? THEN 1 ELSE 0 END), 0) AS auto_renewing,
			COALESCE(SUM(CASE WHEN end_date > ? AND end_date <= ? THEN 1 ELSE 0 END), 0) AS expiring
		 FROM boost_records`+clause,
		totalArgs...,
	).Scan(&totals).Error
	if err != nil {
		return domain.BoostStats{}, err
	}

	var rows []struct {
		Tier  string
		Count int64
	}
	err = conn.WithContext(ctx).Raw(
		`SELECT tier, COUNT(1) AS count FROM boost_records`+clause+` GROUP BY tier`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return domain.BoostStats{}, err
	}

	stats := domain.BoostStats{
		Count:             totals.Count,
		TotalSpend:        totals.TotalSpend,
		AutoRenewing:      totals.AutoRenewing,
		ExpiringWithin24h: totals.Expiring,
		ByTier:            make(map[string]int64, len(rows)),
	}
	for _, row := range rows {
		stats.ByTier[row.Tier] = row.Count
	}
	return stats, nil
}

func filterClause(filter domain.ListFilter) ([]string, []any) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if sellerID := strings.TrimSpace(filter.SellerID); sellerID != "" {
		where = append(where, "seller_id = ?")
		args = append(args, sellerID)
	}
	if filter.ListingID != nil {
		where = append(where, "listing_id = ?")
		args = append(args, *filter.ListingID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, filter.Tier)
	}
	return where, args
}

func (r *repo) TransitionStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, from, to domain.BoostStatus, reason *string, now time.Time) (bool, error) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, now}
	switch to {
	case domain.BoostStatusActive:
		sets = append(sets, "activated_at = ?")
		args = append(args, now)
	case domain.BoostStatusCancelled:
		sets = append(sets, "cancelled_at = ?")
		args = append(args, now)
	case domain.BoostStatusExpired:
		sets = append(sets, "auto_renew_enabled = ?", "next_renewal_date = NULL")
		args = append(args, false)
	}
	if reason != nil {
		sets = append(sets, "cancel_reason = ?")
		args = append(args, *reason)
	}
	args = append(args, id, from)

	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Activate(ctx context.Context, conn *gorm.DB, update domain.ActivateUpdate) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET status = ?, payment_status = ?, activated_at = ?, start_date = ?, end_date = ?,
			payment_method = ?, transaction_ref = ?, next_renewal_date = ?,
			performance_before = ?, is_override = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BoostStatusActive,
		domain.PaymentStatusCompleted,
		update.Now,
		update.StartDate,
		update.EndDate,
		update.PaymentMethod,
		update.TransactionRef,
		update.NextRenewalDate,
		datatypes.NewJSONType(update.Before),
		update.IsOverride,
		update.Now,
		update.ID,
		update.From,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, domain.ErrAlreadyBoosted
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Cancel(ctx context.Context, conn *gorm.DB, update domain.CancelUpdate) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET status = ?, cancelled_at = ?, cancel_reason = ?, refund_amount = ?, payment_status = ?,
			auto_renew_enabled = ?, next_renewal_date = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BoostStatusCancelled,
		update.Now,
		update.Reason,
		update.RefundAmount,
		update.PaymentStatus,
		false,
		update.Now,
		update.ID,
		update.From,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkPaymentFailed(ctx context.Context, conn *gorm.DB, id snowflake.ID, method string, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET payment_status = ?, payment_method = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.PaymentStatusFailed,
		method,
		now,
		id,
		domain.BoostStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetAutoRenew(ctx context.Context, conn *gorm.DB, id snowflake.ID, enabled bool, maxRenewals int, nextRenewal *time.Time, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET auto_renew_enabled = ?, max_renewals = ?, next_renewal_date = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		enabled,
		maxRenewals,
		nextRenewal,
		now,
		id,
		domain.CancellableStatuses(),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DisableAutoRenew(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET auto_renew_enabled = ?, next_renewal_date = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND auto_renew_enabled = ?`,
		false,
		now,
		id,
		domain.BoostStatusActive,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordRenewal bumps the renewal counter only if no other cycle got there first.
func (r *repo) RecordRenewal(ctx context.Context, conn *gorm.DB, id snowflake.ID, expectedCount int, nextRenewal time.Time, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET renewal_count = renewal_count + 1, next_renewal_date = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND renewal_count = ?`,
		nextRenewal,
		now,
		id,
		domain.BoostStatusActive,
		expectedCount,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdatePerformanceAfter(ctx context.Context, conn *gorm.DB, id snowflake.ID, snapshot domain.PerformanceSnapshot, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET performance_after = ?, performance_refreshed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		datatypes.NewJSONType(snapshot),
		now,
		now,
		id,
		domain.BoostStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkRefunded(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE boost_records
		 SET payment_status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND payment_status = ? AND refund_amount > 0`,
		domain.PaymentStatusRefunded,
		now,
		id,
		domain.BoostStatusCancelled,
		domain.PaymentStatusCompleted,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListExpiredIDs(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT id FROM boost_records
		 WHERE status = ? AND end_date <= ?
		 ORDER BY end_date ASC, id ASC
		 LIMIT ?`,
		domain.BoostStatusActive, now, limit,
	)
}

func (r *repo) ListExpiringSoon(ctx context.Context, conn *gorm.DB, now, until time.Time, afterID snowflake.ID, limit int) ([]domain.ExpiringBoost, error) {
	var items []domain.ExpiringBoost
	err := conn.WithContext(ctx).Raw(
		`SELECT id, listing_id, seller_id, tier, end_date FROM boost_records
		 WHERE status = ? AND auto_renew_enabled = ? AND end_date > ? AND end_date <= ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.BoostStatusActive,
		false,
		now,
		until,
		afterID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListRenewableIDs(ctx context.Context, conn *gorm.DB, until time.Time, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT b.id FROM boost_records b
		 WHERE b.status = ? AND b.auto_renew_enabled = ? AND b.end_date <= ?
			AND (b.max_renewals = 0 OR b.renewal_count < b.max_renewals)
			AND NOT EXISTS (SELECT 1 FROM boost_records s WHERE s.renewed_from_id = b.id)
		 ORDER BY b.end_date ASC, b.id ASC
		 LIMIT ?`,
		domain.BoostStatusActive, true, until, limit,
	)
}

func (r *repo) ListScheduledDueIDs(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT id FROM boost_records
		 WHERE status = ? AND start_date <= ?
		 ORDER BY start_date ASC, id ASC
		 LIMIT ?`,
		domain.BoostStatusScheduled, now, limit,
	)
}

func (r *repo) ListStalePendingIDs(ctx context.Context, conn *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT id FROM boost_records
		 WHERE status = ? AND created_at <= ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		domain.BoostStatusPending, cutoff, limit,
	)
}

func (r *repo) ListPerformanceDueIDs(ctx context.Context, conn *gorm.DB, now, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT id FROM boost_records
		 WHERE status = ? AND start_date <= ?
			AND (performance_refreshed_at IS NULL OR performance_refreshed_at <= ?)
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.BoostStatusActive, now, cutoff, limit,
	)
}

func (r *repo) ListPendingRefundIDs(ctx context.Context, conn *gorm.DB, limit int) ([]snowflake.ID, error) {
	return r.listIDs(ctx, conn,
		`SELECT id FROM boost_records
		 WHERE status = ? AND payment_status = ? AND refund_amount > 0
		 ORDER BY cancelled_at ASC, id ASC
		 LIMIT ?`,
		domain.BoostStatusCancelled, domain.PaymentStatusCompleted, limit,
	)
}

func (r *repo) listIDs(ctx context.Context, conn *gorm.DB, query string, args ...any) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
