package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boostd/internal/authorization"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"github.com/smallbiznis/boostd/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: err.Error(),
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, boostdomain.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, boostdomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    sentinelCode(err, boostdomain.ErrNotFound, boostdomain.ErrListingNotFound, catalogdomain.ErrListingNotFound),
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type: "conflict",
			Code: sentinelCode(err,
				boostdomain.ErrInvalidTransition,
				boostdomain.ErrAlreadyBoosted,
				boostdomain.ErrAlreadyActive,
				boostdomain.ErrTransactionRefInUse,
				paymentdomain.ErrChargeInProgress,
			),
			Message: err.Error(),
		}
	case isPaymentError(err):
		return http.StatusPaymentRequired, errorPayload{
			Type: "payment_required",
			Code: sentinelCode(err,
				boostdomain.ErrPaymentFailed,
				boostdomain.ErrInsufficientRenewalFunds,
				paymentdomain.ErrInsufficientFunds,
				paymentdomain.ErrPaymentDeclined,
			),
			Message: err.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	boostdomain.ErrInvalidBoostID,
	boostdomain.ErrInvalidListingID,
	boostdomain.ErrInvalidTier,
	boostdomain.ErrInvalidDuration,
	boostdomain.ErrInvalidStatus,
	boostdomain.ErrInvalidPaymentMethod,
	boostdomain.ErrMissingTransactionRef,
	boostdomain.ErrInvalidMaxRenewals,
	boostdomain.ErrPricingUnavailable,
	paymentdomain.ErrInvalidMethod,
	paymentdomain.ErrMissingReference,
}

func isValidationError(err error) bool {
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, boostdomain.ErrNotFound),
		errors.Is(err, boostdomain.ErrListingNotFound),
		errors.Is(err, catalogdomain.ErrListingNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, boostdomain.ErrInvalidTransition),
		errors.Is(err, boostdomain.ErrAlreadyBoosted),
		errors.Is(err, boostdomain.ErrAlreadyActive),
		errors.Is(err, boostdomain.ErrTransactionRefInUse),
		errors.Is(err, paymentdomain.ErrChargeInProgress):
		return true
	default:
		return false
	}
}

func isPaymentError(err error) bool {
	switch {
	case errors.Is(err, boostdomain.ErrPaymentFailed),
		errors.Is(err, boostdomain.ErrInsufficientRenewalFunds),
		errors.Is(err, paymentdomain.ErrInsufficientFunds),
		errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return true
	default:
		return false
	}
}

// sentinelCode returns the first matching sentinel's text, or the generic
// conflict/not-found code when only the server-level error matched.
func sentinelCode(err error, targets ...error) string {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	switch {
	case errors.Is(err, ErrConflict):
		return ErrConflict.Error()
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound.Error()
	default:
		return ""
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case boostdomain.ErrMissingTransactionRef.Error():
		return "transaction_ref"
	case boostdomain.ErrPricingUnavailable.Error():
		return "tier"
	case paymentdomain.ErrMissingReference.Error():
		return "transaction_ref"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case boostdomain.ErrMissingTransactionRef.Error(), paymentdomain.ErrMissingReference.Error():
		return "transaction_ref is required"
	case boostdomain.ErrPricingUnavailable.Error():
		return "tier is not priced"
	default:
		return "invalid value"
	}
}
