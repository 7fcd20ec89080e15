package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/boostd/internal/authorization"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"github.com/smallbiznis/boostd/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{boostdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{authorization.ErrInvalidActor, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("cancel 1: %w", boostdomain.ErrInvalidTransition), http.StatusConflict, "conflict"},
		{boostdomain.ErrAlreadyActive, http.StatusConflict, "conflict"},
		{paymentdomain.ErrChargeInProgress, http.StatusConflict, "conflict"},
		{boostdomain.ErrInsufficientRenewalFunds, http.StatusPaymentRequired, "payment_required"},
		{pagination.ErrInvalidPageToken, http.StatusBadRequest, "validation_error"},
		{boostdomain.ErrInvalidMaxRenewals, http.StatusBadRequest, "validation_error"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestMapError_InternalErrorsAreOpaque(t *testing.T) {
	_, payload := mapError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", payload.Message)
}

func TestMapError_ValidationFieldFromCode(t *testing.T) {
	_, payload := mapError(fmt.Errorf("confirm: %w", boostdomain.ErrMissingTransactionRef))
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "transaction_ref", payload.Errors[0].Field)
		assert.Equal(t, "missing_transaction_ref", payload.Errors[0].Code)
	}

	_, payload = mapError(boostdomain.ErrInvalidDuration)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "duration", payload.Errors[0].Field)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(boostdomain.ErrAlreadyBoosted)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "already_boosted", code)
}
