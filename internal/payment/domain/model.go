// Package domain contains the payment collaborator contracts and its charge log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

type Purpose string

const (
	PurposePurchase Purpose = "purchase"
	PurposeRenewal  Purpose = "renewal"
	PurposeRefund   Purpose = "refund"
)

const (
	ProviderWallet   = "wallet"
	ProviderExternal = "external"

	MethodWallet       = "wallet"
	MethodCard         = "card"
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
)

// Charge is one attempt logged by the payment collaborator. A succeeded charge with
// no reconciled_at and no boost record carrying its transaction_ref is orphaned.
type Charge struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	IdempotencyKey string       `json:"idempotency_key" gorm:"type:text;not null;uniqueIndex"`
	PayerID        string       `json:"payer_id" gorm:"type:text;not null;index"`
	Amount         int64        `json:"amount" gorm:"not null"`
	Currency       string       `json:"currency" gorm:"type:text;not null"`
	Method         string       `json:"method" gorm:"type:text;not null"`
	Provider       string       `json:"provider" gorm:"type:text;not null"`
	Status         ChargeStatus `json:"status" gorm:"type:text;not null;index"`
	FailureReason  *string      `json:"failure_reason,omitempty" gorm:"type:text"`
	TransactionRef *string      `json:"transaction_ref,omitempty" gorm:"type:text;index"`
	Purpose        Purpose      `json:"purpose" gorm:"type:text;not null"`
	BoostID        snowflake.ID `json:"boost_id" gorm:"not null;index"`
	ReconciledAt   *time.Time   `json:"reconciled_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null"`
}

func (Charge) TableName() string { return "payment_charges" }

// Wallet is a seller's internal balance, the default method for renewals.
type Wallet struct {
	SellerID  string    `json:"seller_id" gorm:"type:text;primaryKey"`
	Currency  string    `json:"currency" gorm:"type:text;primaryKey"`
	Balance   int64     `json:"balance" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Wallet) TableName() string { return "seller_wallets" }

// ProviderForMethod maps a payment method to the adapter that settles it.
func ProviderForMethod(method string) string {
	switch method {
	case MethodWallet:
		return ProviderWallet
	case MethodCard, MethodMobileMoney, MethodBankTransfer:
		return ProviderExternal
	default:
		return ""
	}
}
