package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/smallbiznis/boostd/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSecret(secret string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderSchedulerSecret, secret)
	}
}

func TestRunScheduler_RejectsWrongSecret(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/internal/scheduler/run", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.do(http.MethodPost, "/internal/scheduler/run", "", withSecret("nope"))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Zero(t, ts.sweeper.calls)
}

func TestRunScheduler_ReturnsSummaryEvenOnErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.sweeper.summary = scheduler.Summary{ExpiringSoon: 2, Expired: 3, Failed: 1}
	ts.sweeper.err = errors.New("expire_boosts: boom")

	resp := ts.do(http.MethodPost, "/internal/scheduler/run", "", withSecret("s3cret"))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, ts.sweeper.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["expiringSoon"])
	assert.Equal(t, float64(3), body["expired"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Equal(t, false, body["skipped"])
	for _, key := range []string{"autoRenewed", "activated", "stalePendingExpired", "orphanedCharges"} {
		assert.Contains(t, body, key)
	}
}

func TestRunScheduler_DisabledWithoutSecret(t *testing.T) {
	ts := newTestServer(t)
	srv := &Server{sweeper: ts.sweeper}

	ts.router.POST("/internal/scheduler/run-unconfigured", srv.RunScheduler)
	resp := ts.do(http.MethodPost, "/internal/scheduler/run-unconfigured", "", withSecret(""))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Zero(t, ts.sweeper.calls)
}
