package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []*domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*domain.Entry, error) {
	stmt := db.WithContext(ctx).Model(&domain.Entry{}).Where("tenant_id = ?", tenantID)
	stmt, err := pagination.ApplyKeyset(stmt, "id", page)
	if err != nil {
		return nil, err
	}

	var entries []*domain.Entry
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) TotalsByAccount(ctx context.Context, db *gorm.DB) ([]domain.AccountTotal, error) {
	var rows []domain.AccountTotal
	err := db.WithContext(ctx).Raw(
		`SELECT account_code, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entry_count
		 FROM treasury_entries
		 GROUP BY account_code`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertAccount refreshes the display name of an existing account code.
func (r *repo) UpsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "kind"}),
	}).Create(account).Error
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB) ([]*domain.Account, error) {
	var accounts []*domain.Account
	if err := db.WithContext(ctx).Order("code asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
