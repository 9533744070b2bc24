package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// RecordRequest settles every leg of one renewal under a shared description.
type RecordRequest struct {
	TenantID    snowflake.ID
	RenewalRef  string
	SettledAt   time.Time
	Legs        []paymentlegdomain.Leg
	Description string
}

type ListEntriesRequest struct {
	TenantID  string
	PageToken string
	PageSize  int32
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	// Record appends the entries inside tx so they commit with the tenant update.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) ([]Entry, error)
	ListByTenant(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
	AccountBalances(ctx context.Context) ([]AccountBalance, error)
	// EnsureAccounts creates the configured cash drawer and bank accounts.
	EnsureAccounts(ctx context.Context) error
}

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidRenewalRef    = errors.New("invalid_renewal_ref")
	ErrInvalidDescription   = errors.New("invalid_description")
	ErrAccountNotConfigured = errors.New("account_not_configured")
	ErrInvalidEntryAmount   = errors.New("invalid_entry_amount")
	ErrTransactionRequired  = errors.New("transaction_required")
)
