package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
)

type AddPaymentLegRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type Service interface {
	// Open starts a renewal at the tenant's current tier with stored credit unused.
	Open(ctx context.Context, tenantID string) (Summary, error)
	Get(ctx context.Context, id string) (Summary, error)
	SetTargetTier(ctx context.Context, id string, tier string) (Summary, error)
	SetUseCredit(ctx context.Context, id string, useCredit bool) (Summary, error)
	AddPaymentLeg(ctx context.Context, id string, req AddPaymentLegRequest) (Summary, error)
	RemovePaymentLeg(ctx context.Context, id string, legID string) (Summary, error)
	// Commit updates the tenant and appends treasury entries in one database transaction.
	Commit(ctx context.Context, id string) (CommitResult, error)
	Cancel(ctx context.Context, id string) error
}

var (
	ErrInvalidID           = errors.New("invalid_renewal_id")
	ErrInvalidLegID        = errors.New("invalid_leg_id")
	ErrTransactionNotFound = errors.New("renewal_not_found")
	ErrTransactionClosed   = errors.New("renewal_closed")
	ErrInsufficientPayment = errors.New("insufficient_payment")
	ErrStaleTenantState    = errors.New("stale_tenant_state")
	ErrTenantLocked        = errors.New("tenant_locked")

	ErrInvalidAmount = paymentlegdomain.ErrInvalidAmount
)
