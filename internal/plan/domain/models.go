// Package domain describes the plan tiers tenants subscribe to.
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Tier identifies a subscription level.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierIntermediate Tier = "intermediate"
	TierFull         Tier = "full"
)

// Plan is a tier with its fixed monthly price.
type Plan struct {
	Tier         Tier            `json:"tier"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
}

type Catalog interface {
	// PriceOf returns the monthly price of tier, zero for an unknown tier.
	PriceOf(tier Tier) decimal.Decimal
	Lookup(tier Tier) (Plan, bool)
	ParseTier(raw string) (Tier, error)
	// Plans lists the catalog ordered by ascending price.
	Plans() []Plan
	TrialTier() Tier
}

var (
	ErrInvalidTier = errors.New("invalid_tier")
)
