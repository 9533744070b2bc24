package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const tenantColumns = `id, name, slug, tier, subscription_end, credit_balance, has_been_billed, version, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.Tier,
		tenant.SubscriptionEnd,
		tenant.CreditBalance,
		tenant.HasBeenBilled,
		tenant.Version,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`,
		id,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return normalize(&tenant), nil
}

// FindByIDForUpdate row-locks the tenant on dialects that support it.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&tenant), nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = ?`,
		slug,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return normalize(&tenant), nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTenantFilter, page pagination.Pagination) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	stmt := db.WithContext(ctx).Model(&domain.Tenant{})
	if filter.Tier != "" {
		stmt = stmt.Where("tier = ?", filter.Tier)
	}
	stmt, err := pagination.ApplyKeyset(stmt, "id", page)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&tenants).Error; err != nil {
		return nil, err
	}
	for _, t := range tenants {
		normalize(t)
	}
	return tenants, nil
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, update domain.SubscriptionUpdate) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET tier = ?, subscription_end = ?, credit_balance = ?, has_been_billed = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		update.Tier,
		clock.Date(update.SubscriptionEnd),
		update.CreditBalance,
		true,
		update.UpdatedAt,
		update.ID,
		update.ExpectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func normalize(t *domain.Tenant) *domain.Tenant {
	if t == nil {
		return nil
	}
	t.SubscriptionEnd = clock.Date(t.SubscriptionEnd)
	return t
}
