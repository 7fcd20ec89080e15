package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/boostd/internal/authorization"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	boostrepository "github.com/smallbiznis/boostd/internal/boost/repository"
	boostservice "github.com/smallbiznis/boostd/internal/boost/service"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/boostd/internal/catalog/repository"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/boostd/internal/ledger/service"
	"github.com/smallbiznis/boostd/internal/notification"
	"github.com/smallbiznis/boostd/internal/payment/adapters"
	"github.com/smallbiznis/boostd/internal/payment/adapters/external"
	"github.com/smallbiznis/boostd/internal/payment/adapters/wallet"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/boostd/internal/payment/repository"
	paymentservice "github.com/smallbiznis/boostd/internal/payment/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notification.Kind
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, kind notification.Kind, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func (n *recordingNotifier) count(kind notification.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

type switchableGateway struct {
	paymentdomain.Gateway
	refundErr   error
	chargeErr   error
	afterCharge func()
}

func (g *switchableGateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.ChargeResult, error) {
	if g.chargeErr != nil {
		return paymentdomain.ChargeResult{}, g.chargeErr
	}
	result, err := g.Gateway.Charge(ctx, req)
	if err == nil && g.afterCharge != nil {
		g.afterCharge()
	}
	return result, err
}

func (g *switchableGateway) Refund(ctx context.Context, req paymentdomain.RefundRequest) (paymentdomain.ChargeResult, error) {
	if g.refundErr != nil {
		return paymentdomain.ChargeResult{}, g.refundErr
	}
	return g.Gateway.Refund(ctx, req)
}

type harness struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	boosts   *boostservice.Service
	payments *paymentservice.Service
	gateway  *switchableGateway
	catalog  catalogdomain.Store
	ledger   ledgerdomain.Service
	notifier *recordingNotifier
	repo     boostdomain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Listing{},
		&boostdomain.BoostRecord{},
		&ledgerdomain.LedgerEntry{},
		&paymentdomain.Charge{},
		&paymentdomain.Wallet{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(t0)
	log := zap.NewNop()
	cfg := config.Config{Payment: config.PaymentConfig{
		AcceptedMethods:  []string{"wallet"},
		WalletAutoCreate: true,
	}}

	payments, err := paymentservice.NewService(paymentservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Cfg:      cfg,
		Registry: adapters.NewRegistry(wallet.NewFactory(), external.NewFactory()),
		Repo:     paymentrepository.Provide(),
		Clock:    clk,
	})
	require.NoError(t, err)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	h := &harness{
		db:       db,
		node:     node,
		clock:    clk,
		payments: payments,
		gateway:  &switchableGateway{Gateway: payments},
		catalog:  catalogrepository.NewStore(catalogrepository.Params{DB: db}),
		ledger:   ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Clock: clk}),
		notifier: &recordingNotifier{},
		repo:     boostrepository.Provide(),
	}
	h.boosts = boostservice.NewService(boostservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Cfg:       cfg,
		Pricing:   config.NewStaticPricingHolder(config.DefaultPricingConfig()),
		Repo:      h.repo,
		Catalog:   h.catalog,
		Ledger:    h.ledger,
		Gateway:   h.gateway,
		ChargeLog: payments,
		Authz:     authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		Notifier:  h.notifier,
		Clock:     clk,
	})
	return h
}

func (h *harness) scheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		DB:        h.db,
		Log:       zap.NewNop(),
		GenID:     h.node,
		Repo:      h.repo,
		Sweep:     h.boosts,
		ChargeLog: h.payments,
		Notifier:  h.notifier,
		Clock:     h.clock,
		Config:    cfg,
	})
	require.NoError(t, err)
	return sched
}

func (h *harness) listing(t *testing.T, sellerID string) catalogdomain.Listing {
	t.Helper()
	listing := catalogdomain.Listing{
		ID:              h.node.Generate(),
		SellerID:        sellerID,
		Title:           "Walnut cutting board",
		Slug:            "walnut-cutting-board",
		Currency:        "USD",
		PopularityScore: 2.5,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	require.NoError(t, h.db.Create(&listing).Error)
	return listing
}

func (h *harness) topUp(t *testing.T, sellerID string, amount int64) {
	t.Helper()
	_, err := h.payments.TopUp(context.Background(), sellerID, "USD", amount)
	require.NoError(t, err)
}

func (h *harness) purchase(t *testing.T, listing catalogdomain.Listing, autoRenew bool) boostdomain.BoostRecord {
	t.Helper()
	actor := authorization.NewActor(listing.SellerID, authorization.RoleSeller)
	resp, err := h.boosts.PurchaseBoost(context.Background(), boostdomain.PurchaseRequest{
		ListingID: listing.ID.String(),
		Tier:      boostdomain.TierDaily,
		AutoRenew: autoRenew,
		Actor:     actor,
	})
	require.NoError(t, err)
	return resp.Boost
}

func (h *harness) activeDaily(t *testing.T, listing catalogdomain.Listing, autoRenew bool) boostdomain.BoostRecord {
	t.Helper()
	pending := h.purchase(t, listing, autoRenew)
	record, err := h.boosts.ConfirmBoostPayment(context.Background(), boostdomain.ConfirmPaymentRequest{
		BoostID: pending.ID.String(),
		Actor:   authorization.NewActor(listing.SellerID, authorization.RoleSeller),
	})
	require.NoError(t, err)
	return record
}

func (h *harness) reload(t *testing.T, id snowflake.ID) boostdomain.BoostRecord {
	t.Helper()
	record, err := h.repo.FindByID(context.Background(), h.db, id)
	require.NoError(t, err)
	return *record
}

func (h *harness) reloadListing(t *testing.T, id snowflake.ID) catalogdomain.Listing {
	t.Helper()
	listing, err := h.catalog.GetListing(context.Background(), h.db, id)
	require.NoError(t, err)
	return *listing
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{BatchSize: 10, PendingTTL: -time.Minute}.withDefaults()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 24*time.Hour, cfg.WarningWindow)
	assert.Equal(t, 24*time.Hour, cfg.RenewalWindow)
	assert.Equal(t, time.Duration(0), cfg.PendingTTL)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
}

func TestProvideConfig_MapsSchedulerSettings(t *testing.T) {
	cfg := ProvideConfig(config.Config{Scheduler: config.SchedulerConfig{
		BatchSize:   25,
		PendingTTL:  2 * time.Hour,
		EnabledJobs: []string{"expire_boosts"},
	}})
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 2*time.Hour, cfg.PendingTTL)
	assert.Equal(t, []string{"expire_boosts"}, cfg.EnabledJobs)
}

func TestIsJobEnabled(t *testing.T) {
	h := newHarness(t)

	all := h.scheduler(t, Config{})
	assert.True(t, all.isJobEnabled(JobAutoRenew))

	only := h.scheduler(t, Config{EnabledJobs: []string{"EXPIRE_BOOSTS"}})
	assert.True(t, only.isJobEnabled(JobExpireBoosts))
	assert.False(t, only.isJobEnabled(JobAutoRenew))
}

func TestRunOnce_WarnsThenExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 1000)
	record := h.activeDaily(t, listing, false)
	sched := h.scheduler(t, Config{BatchSize: 10})

	h.clock.Set(record.EndDate.Add(-time.Hour))
	summary, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{ExpiringSoon: 1}, summary)
	assert.Equal(t, 1, h.notifier.count(notification.KindBoostExpiringSoon))
	assert.Equal(t, boostdomain.BoostStatusActive, h.reload(t, record.ID).Status)

	h.clock.Set(record.EndDate)
	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Expired: 1}, summary)
	assert.Equal(t, boostdomain.BoostStatusExpired, h.reload(t, record.ID).Status)
	assert.False(t, h.reloadListing(t, listing.ID).IsBoosted)

	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	entries, err := h.ledger.ListByBoost(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, h.notifier.count(notification.KindBoostExpired))
}

func TestRunOnce_RenewsThenHandsOver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 5000)
	record := h.activeDaily(t, listing, true)
	sched := h.scheduler(t, Config{BatchSize: 10, RenewalWindow: time.Hour})

	h.clock.Set(record.EndDate.Add(-30 * time.Minute))
	summary, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{AutoRenewed: 1}, summary)

	balance, err := h.payments.Balance(ctx, "seller-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)

	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary, "renewal is charged once per cycle")

	h.clock.Set(record.EndDate)
	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Activated: 1, Expired: 1}, summary)

	projected := h.reloadListing(t, listing.ID)
	assert.True(t, projected.IsBoosted)
	require.NotNil(t, projected.BoostExpiresAt)
	assert.True(t, record.EndDate.AddDate(0, 0, 1).Equal(*projected.BoostExpiresAt))
}

func TestRunOnce_DeclinedRenewalCountsFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 1000)
	record := h.activeDaily(t, listing, true)
	sched := h.scheduler(t, Config{BatchSize: 10, RenewalWindow: time.Hour})

	h.clock.Set(record.EndDate.Add(-30 * time.Minute))
	summary, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.AutoRenewed)

	stored := h.reload(t, record.ID)
	assert.False(t, stored.AutoRenewEnabled)
	assert.Equal(t, boostdomain.BoostStatusActive, stored.Status)
	assert.True(t, record.EndDate.Equal(stored.EndDate))
	assert.Equal(t, 1, h.notifier.count(notification.KindBoostRenewalFailed))

	// no longer auto-renewing, so it is now reported as expiring
	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{ExpiringSoon: 1}, summary)
}

func TestRunOnce_StalePendingRequiresTTL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	pending := h.purchase(t, listing, false)
	h.clock.Advance(2 * time.Hour)

	summary, err := h.scheduler(t, Config{BatchSize: 10}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.StalePendingExpired)
	assert.Equal(t, boostdomain.BoostStatusPending, h.reload(t, pending.ID).Status)

	summary, err = h.scheduler(t, Config{BatchSize: 10, PendingTTL: time.Hour}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StalePendingExpired)

	stored := h.reload(t, pending.ID)
	assert.Equal(t, boostdomain.BoostStatusExpired, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, boostdomain.CancelReasonPaymentTimeout, *stored.CancelReason)
}

func TestRunOnce_ReportsOrphanedCharges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 5000)
	h.activeDaily(t, listing, false)

	_, err := h.payments.Charge(ctx, paymentdomain.ChargeRequest{
		PayerID:        "seller-1",
		Amount:         1000,
		Currency:       "USD",
		Method:         paymentdomain.MethodWallet,
		IdempotencyKey: "purchase:lost",
		Purpose:        paymentdomain.PurposePurchase,
		BoostID:        h.node.Generate(),
	})
	require.NoError(t, err)

	sched := h.scheduler(t, Config{BatchSize: 10, ReconcileGrace: 15 * time.Minute})

	summary, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OrphanedCharges, "inside the grace period")

	h.clock.Advance(20 * time.Minute)
	summary, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrphanedCharges)
}

func TestRunOnce_SettlesFailedRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 1000)
	record := h.activeDaily(t, listing, false)

	h.gateway.refundErr = paymentdomain.ErrPaymentDeclined
	h.clock.Advance(2 * time.Hour)
	resp, err := h.boosts.CancelBoost(ctx, boostdomain.CancelRequest{
		BoostID: record.ID.String(),
		Actor:   authorization.NewActor("seller-1", authorization.RoleSeller),
	})
	require.NoError(t, err)
	require.Equal(t, int64(900), resp.RefundAmount)

	sched := h.scheduler(t, Config{BatchSize: 10})
	_, err = sched.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)

	h.gateway.refundErr = nil
	_, err = sched.RunOnce(ctx)
	require.NoError(t, err)

	balance, err := h.payments.Balance(ctx, "seller-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
	assert.Equal(t, boostdomain.PaymentStatusRefunded, h.reload(t, record.ID).PaymentStatus)
}

func TestRunOnce_RenewalErrorsAreCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, "seller-1")
	h.topUp(t, "seller-1", 2000)
	record := h.activeDaily(t, listing, true)
	sched := h.scheduler(t, Config{BatchSize: 10, RenewalWindow: time.Hour, EnabledJobs: []string{JobAutoRenew}})

	h.clock.Set(record.EndDate.Add(-30 * time.Minute))
	h.gateway.chargeErr = fmt.Errorf("wallet store unreachable")
	summary, err := sched.RunOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, Summary{Errored: 1}, summary)
	assert.True(t, h.reload(t, record.ID).AutoRenewEnabled, "transport errors do not disable auto-renew")

	// the record is closed between the charge and the renewal write
	h.gateway.chargeErr = nil
	h.gateway.afterCharge = func() {
		require.NoError(t, h.db.Exec(`UPDATE boost_records SET status = ? WHERE id = ?`, boostdomain.BoostStatusCancelled, record.ID).Error)
	}
	summary, err = sched.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boostdomain.ErrRenewalNotPersisted)
	assert.Equal(t, Summary{Errored: 1, Unreconciled: 1}, summary)

	unreconciled, err := h.payments.ListUnreconciled(ctx, []paymentdomain.Purpose{paymentdomain.PurposeRenewal}, h.clock.Now().Add(time.Minute), 0, 10)
	require.NoError(t, err)
	assert.Len(t, unreconciled, 1)
}
