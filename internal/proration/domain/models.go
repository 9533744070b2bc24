// Package domain holds the value objects produced when a renewal is priced.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
)

// Input is the tenant state and requested change a renewal is priced from.
type Input struct {
	CurrentTier     plandomain.Tier
	SubscriptionEnd time.Time
	CreditBalance   decimal.Decimal
	HasBeenBilled   bool

	TargetTier plandomain.Tier
	AsOf       time.Time
	UseCredit  bool
}

// Result is never persisted; it is recomputed after every change to a renewal.
type Result struct {
	DaysRemaining int  `json:"days_remaining"`
	IsUpgrade     bool `json:"is_upgrade"`
	IsDowngrade   bool `json:"is_downgrade"`
	IsTrial       bool `json:"is_trial"`

	CurrentPrice decimal.Decimal `json:"current_price"`
	TargetPrice  decimal.Decimal `json:"target_price"`

	// GrossAmount is the charge before stored credit is applied.
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CreditApplied    decimal.Decimal `json:"credit_applied"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	CreditToGenerate decimal.Decimal `json:"credit_to_generate"`
	NextExpiryDate   time.Time       `json:"next_expiry_date"`
}

// IsRenewal reports whether the tenant stays on its current price point.
func (r Result) IsRenewal() bool {
	return !r.IsUpgrade && !r.IsDowngrade
}

type Calculator interface {
	Compute(in Input) Result
}
