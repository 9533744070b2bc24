package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	"github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUpdateSubscriptionChecksVersion(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "repo.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Tenant{}))

	ctx := context.Background()
	r := Provide()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tenant := &domain.Tenant{
		ID:              101,
		Name:            "Toko Kita",
		Slug:            "toko-kita",
		Tier:            plandomain.TierIntermediate,
		SubscriptionEnd: clock.Date(now).AddDate(0, 0, 10),
		CreditBalance:   decimal.RequireFromString("15.00"),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, r.Insert(ctx, db, tenant))

	locked, err := r.FindByIDForUpdate(ctx, db, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.True(t, locked.CreditBalance.Equal(decimal.NewFromInt(15)))

	ok, err := r.UpdateSubscription(ctx, db, domain.SubscriptionUpdate{
		ID:              tenant.ID,
		ExpectedVersion: 1,
		Tier:            plandomain.TierFull,
		SubscriptionEnd: clock.Date(now).AddDate(0, 0, 40),
		CreditBalance:   decimal.Zero,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.UpdateSubscription(ctx, db, domain.SubscriptionUpdate{
		ID:              tenant.ID,
		ExpectedVersion: 1,
		Tier:            plandomain.TierBasic,
		SubscriptionEnd: now,
		CreditBalance:   decimal.Zero,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := r.FindByID(ctx, db, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, plandomain.TierFull, reloaded.Tier)
	assert.Equal(t, int64(2), reloaded.Version)
	assert.True(t, reloaded.HasBeenBilled)
	assert.Equal(t, "2026-06-10", clock.FormatDate(reloaded.SubscriptionEnd))

	missing, err := r.FindByIDForUpdate(ctx, db, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
