package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/config"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	"github.com/smallbiznis/tenantdesk/internal/proration/domain"
)

const moneyPlaces = 2

// Policy carries the cycle constants proration is evaluated against.
type Policy struct {
	CycleDays int
	TrialDays int
}

type Calculator struct {
	catalog plandomain.Catalog
	cfg     *config.RenewalConfigHolder
}

func NewCalculator(catalog plandomain.Catalog, cfg *config.RenewalConfigHolder) domain.Calculator {
	return &Calculator{catalog: catalog, cfg: cfg}
}

func (c *Calculator) Compute(in domain.Input) domain.Result {
	cfg := c.cfg.Get()
	policy := Policy{CycleDays: cfg.CycleDays, TrialDays: cfg.TrialDays}
	return Compute(policy, c.catalog.PriceOf(in.CurrentTier), c.catalog.PriceOf(in.TargetTier), in)
}

// Compute prices a renewal. It has no side effects and never fails.
func Compute(policy Policy, currentPrice, targetPrice decimal.Decimal, in domain.Input) domain.Result {
	cycleDays := policy.CycleDays
	if cycleDays <= 0 {
		cycleDays = 30
	}
	cycle := decimal.NewFromInt(int64(cycleDays))

	asOf := clock.Date(in.AsOf)
	end := clock.Date(in.SubscriptionEnd)
	days := clock.DaysBetween(asOf, end)
	remaining := decimal.NewFromInt(int64(days))

	res := domain.Result{
		DaysRemaining:    days,
		IsUpgrade:        targetPrice.GreaterThan(currentPrice),
		IsDowngrade:      targetPrice.LessThan(currentPrice),
		IsTrial:          days > 0 && days <= policy.TrialDays && !in.HasBeenBilled,
		CurrentPrice:     currentPrice,
		TargetPrice:      targetPrice,
		CreditApplied:    decimal.Zero,
		CreditToGenerate: decimal.Zero,
	}

	// remaining * (a - b) / cycle keeps a single division per amount
	if res.IsDowngrade && !res.IsTrial {
		credit := remaining.Mul(currentPrice.Sub(targetPrice)).Div(cycle)
		res.CreditToGenerate = nonNegative(credit).Round(moneyPlaces)
	}

	if res.IsUpgrade && !res.IsTrial {
		res.GrossAmount = remaining.Mul(targetPrice.Sub(currentPrice)).Div(cycle).Round(moneyPlaces)
		res.NextExpiryDate = end
	} else {
		res.GrossAmount = targetPrice.Round(moneyPlaces)
		res.NextExpiryDate = nextCycleEnd(asOf, end, cycleDays)
	}
	res.GrossAmount = nonNegative(res.GrossAmount)

	res.AmountDue = res.GrossAmount
	if in.UseCredit {
		res.CreditApplied = decimal.Min(nonNegative(in.CreditBalance), res.GrossAmount).Round(moneyPlaces)
		res.AmountDue = res.AmountDue.Sub(res.CreditApplied)
	}
	res.AmountDue = nonNegative(res.AmountDue)

	return res
}

// nextCycleEnd stacks a full cycle on the current expiry, or starts one today when lapsed.
func nextCycleEnd(asOf, end time.Time, cycleDays int) time.Time {
	return clock.AddDays(clock.MaxDate(asOf, end), cycleDays)
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
