package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	"gorm.io/datatypes"
)

type AccountKind string

const (
	AccountKindCashDrawer AccountKind = "cash_drawer"
	AccountKindBank       AccountKind = "bank"
)

// Account is a destination money is settled into.
type Account struct {
	Code      string      `gorm:"primaryKey;type:text" json:"code"`
	Name      string      `gorm:"type:text;not null" json:"name"`
	Kind      AccountKind `gorm:"type:text;not null" json:"kind"`
	CreatedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "treasury_accounts" }

// Entry is an immutable settled money movement, one per payment leg.
type Entry struct {
	ID          snowflake.ID            `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID            `gorm:"not null;index:ix_treasury_entries_tenant" json:"tenant_id"`
	RenewalRef  string                  `gorm:"type:text;not null;index" json:"renewal_ref"`
	SettledAt   time.Time               `gorm:"not null" json:"settled_at"`
	Amount      decimal.Decimal         `gorm:"type:decimal(18,2);not null" json:"amount"`
	Currency    string                  `gorm:"type:text;not null" json:"currency"`
	Method      paymentlegdomain.Method `gorm:"type:text;not null" json:"method"`
	Reference   string                  `gorm:"type:text" json:"reference,omitempty"`
	AccountCode string                  `gorm:"type:text;not null;index" json:"account_code"`
	Description string                  `gorm:"type:text;not null" json:"description"`
	Legs        datatypes.JSON          `gorm:"type:json" json:"legs"`
	CreatedAt   time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "treasury_entries" }

// AccountBalance is a display total of everything settled into an account.
type AccountBalance struct {
	Account
	Balance    decimal.Decimal `json:"balance"`
	EntryCount int64           `json:"entry_count"`
}
