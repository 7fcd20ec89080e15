package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Listing is the catalog row. Only the boost projection columns are written by
// this service; the rest is owned by the catalog.
type Listing struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	SellerID        string       `json:"seller_id" gorm:"type:text;not null;index"`
	Title           string       `json:"title" gorm:"type:text;not null"`
	Slug            string       `json:"slug" gorm:"type:text;not null;default:''"`
	Currency        string       `json:"currency" gorm:"type:text;not null;default:'USD'"`
	IsPrivileged    bool         `json:"is_privileged" gorm:"not null;default:false"`
	PopularityScore float64      `json:"popularity_score" gorm:"not null;default:0"`
	ViewCount       int64        `json:"view_count" gorm:"not null;default:0"`
	ClickCount      int64        `json:"click_count" gorm:"not null;default:0"`
	SalesCount      int64        `json:"sales_count" gorm:"not null;default:0"`
	Revenue         int64        `json:"revenue" gorm:"not null;default:0"`

	IsBoosted      bool       `json:"is_boosted" gorm:"not null;default:false;index"`
	BoostType      *string    `json:"boost_type,omitempty" gorm:"type:text"`
	BoostStartedAt *time.Time `json:"boost_started_at,omitempty"`
	BoostExpiresAt *time.Time `json:"boost_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Listing) TableName() string { return "listings" }

// Projection is the boost state mirrored onto a listing. The zero value clears it.
type Projection struct {
	IsBoosted bool
	Type      string
	StartedAt *time.Time
	ExpiresAt *time.Time
}

func ClearedProjection() Projection { return Projection{} }
