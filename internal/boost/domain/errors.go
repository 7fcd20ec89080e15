package domain

import "errors"

var (
	ErrNotFound                 = errors.New("boost_not_found")
	ErrListingNotFound          = errors.New("listing_not_found")
	ErrForbidden                = errors.New("forbidden")
	ErrInvalidTransition        = errors.New("invalid_transition")
	ErrAlreadyBoosted           = errors.New("already_boosted")
	ErrAlreadyActive            = errors.New("already_active")
	ErrPaymentFailed            = errors.New("payment_failed")
	ErrInsufficientRenewalFunds = errors.New("insufficient_renewal_funds")
	ErrRenewalNotPersisted      = errors.New("renewal_not_persisted")

	ErrInvalidBoostID        = errors.New("invalid_boost_id")
	ErrInvalidListingID      = errors.New("invalid_listing_id")
	ErrInvalidActor          = errors.New("invalid_actor")
	ErrInvalidTier           = errors.New("invalid_tier")
	ErrInvalidDuration       = errors.New("invalid_duration")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrMissingTransactionRef = errors.New("missing_transaction_ref")
	ErrTransactionRefInUse   = errors.New("transaction_ref_in_use")
	ErrInvalidMaxRenewals    = errors.New("invalid_max_renewals")
	ErrPricingUnavailable    = errors.New("pricing_unavailable")
)
