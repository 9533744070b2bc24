package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// AccountTotal is the aggregated amount settled into one account.
type AccountTotal struct {
	AccountCode string
	Total       decimal.Decimal
	EntryCount  int64
}

// Repository is append only: entries are never updated or deleted.
type Repository interface {
	InsertEntries(ctx context.Context, db *gorm.DB, entries []*Entry) error
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*Entry, error)
	TotalsByAccount(ctx context.Context, db *gorm.DB) ([]AccountTotal, error)

	UpsertAccount(ctx context.Context, db *gorm.DB, account *Account) error
	ListAccounts(ctx context.Context, db *gorm.DB) ([]*Account, error)
}
