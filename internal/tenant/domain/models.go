package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
)

// Tenant is the subscription record a renewal mutates.
type Tenant struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"type:text;not null" json:"name"`
	Slug            string          `gorm:"type:text;not null;uniqueIndex:ux_tenants_slug" json:"slug"`
	Tier            plandomain.Tier `gorm:"type:text;not null" json:"tier"`
	SubscriptionEnd time.Time       `gorm:"type:date;not null" json:"subscription_end"`
	CreditBalance   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"credit_balance"`
	HasBeenBilled   bool            `gorm:"not null;default:false" json:"has_been_billed"`
	Version         int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// SubscriptionUpdate is the state a committed renewal writes back.
// ExpectedVersion guards against concurrent commits.
type SubscriptionUpdate struct {
	ID              snowflake.ID
	ExpectedVersion int64
	Tier            plandomain.Tier
	SubscriptionEnd time.Time
	CreditBalance   decimal.Decimal
	UpdatedAt       time.Time
}
