// Package external records confirmations for methods settled outside the platform
// (card, mobile money, bank transfer). No money moves here.
package external

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/boostd/internal/payment/domain"
	"gorm.io/gorm"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Provider() string { return domain.ProviderExternal }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	return &Adapter{}, nil
}

type Adapter struct{}

func (a *Adapter) Charge(ctx context.Context, tx *gorm.DB, req domain.ChargeRequest, now time.Time) (string, error) {
	ref := strings.TrimSpace(req.ExternalRef)
	if ref == "" {
		return "", domain.ErrMissingReference
	}
	return ref, nil
}

// Refund issues a reference for an out-of-band refund.
func (a *Adapter) Refund(ctx context.Context, tx *gorm.DB, req domain.RefundRequest, now time.Time) (string, error) {
	return "EXTREF-" + ulid.Make().String(), nil
}
