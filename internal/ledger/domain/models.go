// Package domain contains the append-only boost revenue ledger model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType classifies the financial fact an entry records.
type EntryType string

const (
	EntryTypeBoostSale    EntryType = "boost_sale"
	EntryTypeBoostRenewal EntryType = "boost_renewal"
	EntryTypeBoostRefund  EntryType = "boost_refund"
)

// TransactionPrefix returns the human-traceable prefix of transaction ids for the type.
func TransactionPrefix(t EntryType) string {
	switch t {
	case EntryTypeBoostSale:
		return "BSALE"
	case EntryTypeBoostRenewal:
		return "BRENEW"
	case EntryTypeBoostRefund:
		return "BREFUND"
	default:
		return ""
	}
}

func IsValidEntryType(t EntryType) bool {
	return TransactionPrefix(t) != ""
}

// LedgerEntry is created once and never updated or deleted. Refunds carry a negative amount.
type LedgerEntry struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	TransactionID string       `json:"transaction_id" gorm:"type:text;not null;uniqueIndex"`
	Type          EntryType    `json:"type" gorm:"type:text;not null;uniqueIndex:ux_boost_ledger_source,priority:2"`
	BoostID       snowflake.ID `json:"boost_id" gorm:"not null;index;uniqueIndex:ux_boost_ledger_source,priority:1"`
	ListingID     snowflake.ID `json:"listing_id" gorm:"not null;index"`
	SellerID      string       `json:"seller_id" gorm:"type:text;not null;index"`
	Amount        int64        `json:"amount" gorm:"not null"`
	Currency      string       `json:"currency" gorm:"type:text;not null"`
	SourceRef     string       `json:"source_ref" gorm:"type:text;not null;uniqueIndex:ux_boost_ledger_source,priority:3"`
	OccurredAt    time.Time    `json:"occurred_at" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "boost_ledger_entries" }
