package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boostd/internal/authorization"
	"github.com/smallbiznis/boostd/internal/cache"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/smallbiznis/boostd/internal/scheduler"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeBoostService struct {
	err error

	purchase  *boostdomain.PurchaseRequest
	confirm   *boostdomain.ConfirmPaymentRequest
	cancel    *boostdomain.CancelRequest
	grant     *boostdomain.GrantRequest
	autoRenew *boostdomain.SetAutoRenewRequest
	list      *boostdomain.ListBoostsRequest
	getID     string
	getActor  authorization.Actor
}

func (f *fakeBoostService) PurchaseBoost(ctx context.Context, req boostdomain.PurchaseRequest) (boostdomain.PurchaseResponse, error) {
	f.purchase = &req
	if f.err != nil {
		return boostdomain.PurchaseResponse{}, f.err
	}
	return boostdomain.PurchaseResponse{
		Boost:   boostdomain.BoostRecord{Status: boostdomain.BoostStatusPending, Tier: req.Tier, Price: 1000},
		Payment: boostdomain.PaymentInstruction{Amount: 1000, Currency: "USD", AcceptedMethods: []string{"wallet"}},
	}, nil
}

func (f *fakeBoostService) ConfirmBoostPayment(ctx context.Context, req boostdomain.ConfirmPaymentRequest) (boostdomain.BoostRecord, error) {
	f.confirm = &req
	if f.err != nil {
		return boostdomain.BoostRecord{}, f.err
	}
	return boostdomain.BoostRecord{Status: boostdomain.BoostStatusActive}, nil
}

func (f *fakeBoostService) CancelBoost(ctx context.Context, req boostdomain.CancelRequest) (boostdomain.CancelResponse, error) {
	f.cancel = &req
	if f.err != nil {
		return boostdomain.CancelResponse{}, f.err
	}
	return boostdomain.CancelResponse{
		Boost:        boostdomain.BoostRecord{Status: boostdomain.BoostStatusCancelled},
		RefundAmount: 900,
	}, nil
}

func (f *fakeBoostService) GrantBoost(ctx context.Context, req boostdomain.GrantRequest) (boostdomain.BoostRecord, error) {
	f.grant = &req
	if f.err != nil {
		return boostdomain.BoostRecord{}, f.err
	}
	return boostdomain.BoostRecord{Status: boostdomain.BoostStatusActive, Tier: req.Tier}, nil
}

func (f *fakeBoostService) SetAutoRenew(ctx context.Context, req boostdomain.SetAutoRenewRequest) (boostdomain.BoostRecord, error) {
	f.autoRenew = &req
	if f.err != nil {
		return boostdomain.BoostRecord{}, f.err
	}
	return boostdomain.BoostRecord{Status: boostdomain.BoostStatusActive, AutoRenewEnabled: req.Enabled}, nil
}

func (f *fakeBoostService) GetBoost(ctx context.Context, id string, actor authorization.Actor) (boostdomain.BoostDetail, error) {
	f.getID = id
	f.getActor = actor
	if f.err != nil {
		return boostdomain.BoostDetail{}, f.err
	}
	return boostdomain.BoostDetail{Boost: boostdomain.BoostRecord{Status: boostdomain.BoostStatusActive}}, nil
}

func (f *fakeBoostService) ListActiveBoosts(ctx context.Context, req boostdomain.ListBoostsRequest) (boostdomain.ListBoostsResponse, error) {
	f.list = &req
	if f.err != nil {
		return boostdomain.ListBoostsResponse{}, f.err
	}
	resp := boostdomain.ListBoostsResponse{
		Boosts: []boostdomain.BoostRecord{{Status: boostdomain.BoostStatusActive}},
		Stats:  boostdomain.BoostStats{Count: 1, TotalSpend: 1000, ByTier: map[string]int64{"daily": 1}},
	}
	resp.HasMore = true
	resp.NextPageToken = "next"
	return resp, nil
}

type fakeCatalog struct {
	listings []catalogdomain.Listing
	filter   catalogdomain.RankingFilter
}

func (f *fakeCatalog) GetListing(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	return nil, catalogdomain.ErrListingNotFound
}

func (f *fakeCatalog) GetListingForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	return nil, catalogdomain.ErrListingNotFound
}

func (f *fakeCatalog) SetBoostProjection(ctx context.Context, db *gorm.DB, id snowflake.ID, projection catalogdomain.Projection, now time.Time) error {
	return nil
}

func (f *fakeCatalog) GetBasePopularityScore(ctx context.Context, db *gorm.DB, id snowflake.ID) (float64, error) {
	return 0, nil
}

func (f *fakeCatalog) ListForRanking(ctx context.Context, filter catalogdomain.RankingFilter) ([]catalogdomain.Listing, error) {
	f.filter = filter
	return f.listings, nil
}

type fakeSweeper struct {
	calls   int
	summary scheduler.Summary
	err     error
}

func (f *fakeSweeper) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	f.calls++
	return f.summary, f.err
}

type testServer struct {
	router  *gin.Engine
	boosts  *fakeBoostService
	catalog *fakeCatalog
	sweeper *fakeSweeper
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	ts := testServer{
		router:  router,
		boosts:  &fakeBoostService{},
		catalog: &fakeCatalog{},
		sweeper: &fakeSweeper{},
	}
	srv := NewServer(ServerParams{
		Gin:        router,
		Cfg:        config.Config{Scheduler: config.SchedulerConfig{TriggerSecret: "s3cret"}},
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(testNow),
		BoostSvc:   ts.boosts,
		Candidates: cache.NewRankingCandidates(ts.catalog, config.Config{}),
		AuthzSvc:   authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
	})
	srv.sweeper = ts.sweeper
	return ts
}

type requestOption func(*http.Request)

func asSeller(id string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderActorID, id)
		r.Header.Set(HeaderActorRole, authorization.RoleSeller)
	}
}

func asOperator() requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderActorID, "ops-1")
		r.Header.Set(HeaderActorRole, authorization.RolePlatformOperator)
	}
}

func (ts testServer) do(method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}
