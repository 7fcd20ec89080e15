// Package notification delivers boost lifecycle events to sellers.
package notification

import (
	"context"
	"errors"
)

type Kind string

const (
	KindBoostActivated     Kind = "boost.activated"
	KindBoostCancelled     Kind = "boost.cancelled"
	KindBoostExpired       Kind = "boost.expired"
	KindBoostExpiringSoon  Kind = "boost.expiring_soon"
	KindBoostRenewed       Kind = "boost.renewed"
	KindBoostRenewalFailed Kind = "boost.renewal_failed"
)

const (
	DriverKafka = "kafka"
	DriverLog   = "log"
	DriverNoop  = "noop"
)

var ErrInvalidNotification = errors.New("invalid_notification")

// Notifier is fire-and-forget from the caller's point of view: callers log and
// drop the returned error.
//
//go:generate mockgen -source=notifier.go -destination=./mocks/mock_notifier.go -package=mocks
type Notifier interface {
	Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error
}

type noopNotifier struct{}

func NewNoop() Notifier { return noopNotifier{} }

func (noopNotifier) Notify(context.Context, string, Kind, map[string]any) error { return nil }
