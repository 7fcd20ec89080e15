package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/boostd/internal/authorization"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseBoost_RequiresActor(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/boosts", `{"listing_id":"123","tier":"daily"}`)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Nil(t, ts.boosts.purchase)
}

func TestPurchaseBoost_ForwardsRequest(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/boosts",
		`{"listing_id":"123","tier":" Weekly ","duration":{"value":2,"unit":"week"},"auto_renew":true}`,
		asSeller("seller-1"))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, ts.boosts.purchase)
	assert.Equal(t, "123", ts.boosts.purchase.ListingID)
	assert.Equal(t, boostdomain.TierWeekly, ts.boosts.purchase.Tier)
	assert.Equal(t, &boostdomain.Duration{Value: 2, Unit: boostdomain.DurationUnitWeek}, ts.boosts.purchase.Duration)
	assert.True(t, ts.boosts.purchase.AutoRenew)
	assert.Equal(t, authorization.NewActor("seller-1", authorization.RoleSeller), ts.boosts.purchase.Actor)

	var body struct {
		Data boostdomain.PurchaseResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(1000), body.Data.Payment.Amount)
	assert.Equal(t, boostdomain.BoostStatusPending, body.Data.Boost.Status)
}

func TestPurchaseBoost_RejectsBadListingID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/boosts", `{"listing_id":"abc","tier":"daily"}`, asSeller("seller-1"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "listing_id", payload.Errors[0].Field)
	assert.Nil(t, ts.boosts.purchase)
}

func TestPurchaseBoost_MapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"already boosted", boostdomain.ErrAlreadyBoosted, http.StatusConflict, "already_boosted"},
		{"listing missing", boostdomain.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
		{"not the owner", boostdomain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"bad tier", fmt.Errorf("purchase: %w", boostdomain.ErrInvalidTier), http.StatusBadRequest, "invalid_tier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.boosts.err = tc.err

			resp := ts.do(http.MethodPost, "/api/boosts", `{"listing_id":"123","tier":"daily"}`, asSeller("seller-1"))

			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.code, decodeError(t, resp).Code)
		})
	}
}

func TestConfirmBoostPayment_PaymentFailureIs402(t *testing.T) {
	ts := newTestServer(t)
	ts.boosts.err = fmt.Errorf("%w: %s", boostdomain.ErrPaymentFailed, "insufficient_funds")

	resp := ts.do(http.MethodPost, "/api/boosts/77/confirm",
		`{"payment_method":"Wallet","transaction_ref":" ref-1 "}`, asSeller("seller-1"))

	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "payment_failed", payload.Code)
	assert.Equal(t, "payment_failed: insufficient_funds", payload.Message)

	require.NotNil(t, ts.boosts.confirm)
	assert.Equal(t, "77", ts.boosts.confirm.BoostID)
	assert.Equal(t, "wallet", ts.boosts.confirm.PaymentMethod)
	assert.Equal(t, "ref-1", ts.boosts.confirm.TransactionRef)
}

func TestConfirmBoostPayment_InvalidTransitionIs409(t *testing.T) {
	ts := newTestServer(t)
	ts.boosts.err = boostdomain.ErrInvalidTransition

	resp := ts.do(http.MethodPost, "/api/boosts/77/confirm", `{"payment_method":"wallet"}`, asSeller("seller-1"))

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, resp).Code)
}

func TestCancelBoost_RefundDefaultsToService(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/boosts/77/cancel", "", asSeller("seller-1"))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, ts.boosts.cancel)
	assert.Nil(t, ts.boosts.cancel.Refund)
	assert.Equal(t, "77", ts.boosts.cancel.BoostID)
}

func TestCancelBoost_RefundOverrides(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/boosts/77/cancel?refund=false", "", asSeller("seller-1"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.boosts.cancel.Refund)
	assert.False(t, *ts.boosts.cancel.Refund)

	resp = ts.do(http.MethodPost, "/api/boosts/77/cancel?refund=false", `{"refund":true,"reason":" moved "}`, asSeller("seller-1"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.boosts.cancel.Refund)
	assert.True(t, *ts.boosts.cancel.Refund)
	assert.Equal(t, "moved", ts.boosts.cancel.Reason)

	resp = ts.do(http.MethodPost, "/api/boosts/77/cancel?refund=maybe", "", asSeller("seller-1"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBoostRoutes_RejectBadPathID(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/boosts/abc", "/api/boosts/0"} {
		resp := ts.do(http.MethodGet, path, "", asSeller("seller-1"))
		assert.Equal(t, http.StatusBadRequest, resp.Code, path)
	}
	assert.Empty(t, ts.boosts.getID)
}

func TestSetAutoRenew_RequiresEnabled(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPatch, "/api/boosts/77/auto-renew", `{"max_renewals":3}`, asSeller("seller-1"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, ts.boosts.autoRenew)

	resp = ts.do(http.MethodPatch, "/api/boosts/77/auto-renew", `{"enabled":true,"max_renewals":3}`, asSeller("seller-1"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.boosts.autoRenew)
	assert.True(t, ts.boosts.autoRenew.Enabled)
	require.NotNil(t, ts.boosts.autoRenew.MaxRenewals)
	assert.Equal(t, 3, *ts.boosts.autoRenew.MaxRenewals)
}

func TestGetBoost_PassesActor(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/boosts/77", "", asOperator())

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "77", ts.boosts.getID)
	assert.Equal(t, authorization.RolePlatformOperator, ts.boosts.getActor.Role)
}

func TestGetBoost_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.boosts.err = boostdomain.ErrNotFound

	resp := ts.do(http.MethodGet, "/api/boosts/77", "", asSeller("seller-1"))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "boost_not_found", decodeError(t, resp).Code)
}

func TestListBoosts_ForwardsFilters(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/boosts?seller_id=seller-1&status=Active&tier=daily&page_size=5&page_token=abc", "", asSeller("seller-1"))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, ts.boosts.list)
	assert.Equal(t, "seller-1", ts.boosts.list.SellerID)
	assert.Equal(t, "active", ts.boosts.list.Status)
	assert.Equal(t, "daily", ts.boosts.list.Tier)
	assert.Equal(t, 5, ts.boosts.list.PageSize)
	assert.Equal(t, "abc", ts.boosts.list.PageToken)

	var body struct {
		Data     []boostdomain.BoostRecord `json:"data"`
		Stats    boostdomain.BoostStats    `json:"stats"`
		PageInfo struct {
			NextPageToken string `json:"next_page_token"`
			HasMore       bool   `json:"has_more"`
		} `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, int64(1000), body.Stats.TotalSpend)
	assert.True(t, body.PageInfo.HasMore)
	assert.Equal(t, "next", body.PageInfo.NextPageToken)
}

func TestListBoosts_RejectsBadListingFilter(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/boosts?listing_id=xyz", "", asSeller("seller-1"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, ts.boosts.list)
}

func TestGrantBoost_OperatorOnly(t *testing.T) {
	ts := newTestServer(t)
	body := `{"listing_id":"123","tier":"monthly"}`

	resp := ts.do(http.MethodPost, "/api/admin/boosts/grant", body, asSeller("seller-1"))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Nil(t, ts.boosts.grant)

	resp = ts.do(http.MethodPost, "/api/admin/boosts/grant", body, asOperator())
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, ts.boosts.grant)
	assert.Equal(t, boostdomain.TierMonthly, ts.boosts.grant.Tier)
	assert.Equal(t, "ops-1", ts.boosts.grant.Actor.ID)
}
