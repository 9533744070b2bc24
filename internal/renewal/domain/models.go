// Package domain describes an operator-driven renewal from opening to commit.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	prorationdomain "github.com/smallbiznis/tenantdesk/internal/proration/domain"
)

type State string

const (
	// StateOpen accepts tier, credit toggle and leg changes.
	StateOpen State = "open"
	// StateSettled is open with the outstanding balance inside tolerance; commit is allowed.
	StateSettled   State = "settled"
	StateCommitted State = "committed"
	StateCancelled State = "cancelled"
)

// Closed reports whether the renewal no longer accepts changes.
func (s State) Closed() bool {
	return s == StateCommitted || s == StateCancelled
}

type ChangeKind string

const (
	ChangeKindRenewal   ChangeKind = "renewal"
	ChangeKindUpgrade   ChangeKind = "upgrade"
	ChangeKindDowngrade ChangeKind = "downgrade"
)

// Summary is what the console shows after every change to an open renewal.
type Summary struct {
	ID              snowflake.ID    `json:"id"`
	TenantID        snowflake.ID    `json:"tenant_id"`
	TenantName      string          `json:"tenant_name"`
	CurrentTier     plandomain.Tier `json:"current_tier"`
	TargetTier      plandomain.Tier `json:"target_tier"`
	ChangeKind      ChangeKind      `json:"change_kind"`
	SubscriptionEnd time.Time       `json:"subscription_end"`
	CreditBalance   decimal.Decimal `json:"credit_balance"`
	UseCredit       bool            `json:"use_credit"`
	Currency        string          `json:"currency"`
	State           State           `json:"state"`

	Proration prorationdomain.Result `json:"proration"`

	Legs        []paymentlegdomain.Leg `json:"legs"`
	LegsTotal   decimal.Decimal        `json:"legs_total"`
	Outstanding decimal.Decimal        `json:"outstanding"`
	// ChangeDue is the overpayment to hand back, zero unless legs exceed the amount due.
	ChangeDue decimal.Decimal `json:"change_due"`
	CanCommit bool            `json:"can_commit"`

	OpenedAt time.Time `json:"opened_at"`
}

type CommitResult struct {
	RenewalID        snowflake.ID    `json:"renewal_id"`
	RenewalRef       string          `json:"renewal_ref"`
	TenantID         snowflake.ID    `json:"tenant_id"`
	Tier             plandomain.Tier `json:"tier"`
	NewExpiry        time.Time       `json:"new_expiry"`
	NewCreditBalance decimal.Decimal `json:"new_credit_balance"`
	CreditApplied    decimal.Decimal `json:"credit_applied"`
	CreditGenerated  decimal.Decimal `json:"credit_generated"`
	ChangeDue        decimal.Decimal `json:"change_due"`
	LedgerEntryIDs   []snowflake.ID  `json:"ledger_entry_ids"`
	Description      string          `json:"description"`
	CommittedAt      time.Time       `json:"committed_at"`
}
