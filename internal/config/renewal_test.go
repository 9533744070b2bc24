package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultRenewalConfigIsValid(t *testing.T) {
	cfg := DefaultRenewalConfig()
	require.NoError(t, ValidateRenewalConfig(cfg))
	assert.Equal(t, DefaultSettlementTolerance, cfg.SettlementTolerance)
	assert.Equal(t, 30, cfg.CycleDays)
	assert.Equal(t, 15, cfg.TrialDays)
}

func TestValidateRenewalConfigRejectsUnknownTrialTier(t *testing.T) {
	cfg := DefaultRenewalConfig()
	cfg.TrialTier = "platinum"
	assert.Error(t, ValidateRenewalConfig(cfg))
}

func TestValidateRenewalConfigRejectsDuplicatePlans(t *testing.T) {
	cfg := DefaultRenewalConfig()
	cfg.Plans = append(cfg.Plans, PlanPrice{Tier: "Basic", MonthlyPrice: 10})
	assert.Error(t, ValidateRenewalConfig(cfg))
}

func TestNewRenewalConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renewal.yml")
	content := []byte(`renewal:
  currency: EUR
  settlementTolerance: 0.05
  plans:
    - tier: basic
      name: Basic
      monthlyPrice: 30
    - tier: full
      name: Full
      monthlyPrice: 90
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewRenewalConfigHolder(Config{RenewalConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "EUR", cfg.Currency)
	assert.InDelta(t, 0.05, cfg.SettlementTolerance, 1e-9)
	assert.Len(t, cfg.Plans, 2)
	assert.Equal(t, 30, cfg.CycleDays)
	assert.Equal(t, "cash_drawer", cfg.Accounts.CashDrawer.Code)
}

func TestNewRenewalConfigHolderFailsOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renewal.yml")
	require.NoError(t, os.WriteFile(path, []byte("renewal:\n  cycleDays: 0\n"), 0o600))

	_, err := NewRenewalConfigHolder(Config{RenewalConfigPath: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestReplaceRefusesDroppedTier(t *testing.T) {
	holder := NewStaticRenewalConfigHolder(DefaultRenewalConfig())

	next := DefaultRenewalConfig()
	next.Plans = next.Plans[:2]
	err := holder.Replace(next)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
	assert.Len(t, holder.Get().Plans, 3)

	repriced := DefaultRenewalConfig()
	repriced.Plans[2].MonthlyPrice = 109
	require.NoError(t, holder.Replace(repriced))
	assert.Equal(t, 109.0, holder.Get().Plans[2].MonthlyPrice)

	invalid := DefaultRenewalConfig()
	invalid.CycleDays = 0
	assert.Error(t, holder.Replace(invalid))
}
