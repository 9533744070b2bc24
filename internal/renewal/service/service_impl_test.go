package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/config"
	"github.com/smallbiznis/tenantdesk/internal/lock"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	planservice "github.com/smallbiznis/tenantdesk/internal/plan/service"
	prorationservice "github.com/smallbiznis/tenantdesk/internal/proration/service"
	"github.com/smallbiznis/tenantdesk/internal/renewal/domain"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/tenantdesk/internal/tenant/repository"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	treasuryrepository "github.com/smallbiznis/tenantdesk/internal/treasury/repository"
	treasuryservice "github.com/smallbiznis/tenantdesk/internal/treasury/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var openedAt = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	svc     *Service
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	locker  *lock.LocalLocker
	holder  *config.RenewalConfigHolder
	tenants tenantdomain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "renewal.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tenantdomain.Tenant{}, &treasurydomain.Account{}, &treasurydomain.Entry{}))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	holder := config.NewStaticRenewalConfigHolder(config.DefaultRenewalConfig())
	catalog := planservice.NewCatalog(holder)
	fake := clock.NewFakeClock(openedAt)
	locker := lock.NewLocalLocker()
	tenants := tenantrepository.Provide()

	treasury := treasuryservice.New(treasuryservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   treasuryrepository.Provide(),
		Config: holder,
	})

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Config:     holder,
		Catalog:    catalog,
		Calculator: prorationservice.NewCalculator(catalog, holder),
		TenantRepo: tenants,
		Treasury:   treasury,
		Locker:     locker,
	}).(*Service)
	svc.lockWait = 20 * time.Millisecond

	return &harness{svc: svc, db: db, node: node, clock: fake, locker: locker, holder: holder, tenants: tenants}
}

func (h *harness) seedTenant(t *testing.T, tier plandomain.Tier, daysLeft int, credit string, billed bool) tenantdomain.Tenant {
	t.Helper()
	tenant := tenantdomain.Tenant{
		ID:              h.node.Generate(),
		Name:            "Toko Maju",
		Slug:            "toko-maju-" + h.node.Generate().String(),
		Tier:            tier,
		SubscriptionEnd: clock.AddDays(clock.Today(h.clock), daysLeft),
		CreditBalance:   decimal.RequireFromString(credit),
		HasBeenBilled:   billed,
		Version:         1,
		CreatedAt:       openedAt,
		UpdatedAt:       openedAt,
	}
	require.NoError(t, h.tenants.Insert(context.Background(), h.db, &tenant))
	return tenant
}

func (h *harness) reload(t *testing.T, id snowflake.ID) tenantdomain.Tenant {
	t.Helper()
	tenant, err := h.tenants.FindByID(context.Background(), h.db, id)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	return *tenant
}

func (h *harness) entries(t *testing.T, tenantID snowflake.ID) []treasurydomain.Entry {
	t.Helper()
	var out []treasurydomain.Entry
	require.NoError(t, h.db.Where("tenant_id = ?", tenantID).Order("id").Find(&out).Error)
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func leg(method string, amount string) domain.AddPaymentLegRequest {
	return domain.AddPaymentLegRequest{Method: method, Amount: decimal.RequireFromString(amount)}
}

func TestOpenDefaultsToCurrentTierWithoutCredit(t *testing.T) {
	h := newHarness(t)
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 20, "15", true)

	summary, err := h.svc.Open(context.Background(), tenant.ID.String())
	require.NoError(t, err)

	assert.Equal(t, plandomain.TierIntermediate, summary.TargetTier)
	assert.Equal(t, domain.ChangeKindRenewal, summary.ChangeKind)
	assert.False(t, summary.UseCredit)
	assert.Equal(t, domain.StateOpen, summary.State)
	assertMoney(t, "69.00", summary.Outstanding)
	assertMoney(t, "0.00", summary.Proration.CreditApplied)
	assert.False(t, summary.CanCommit)
	assert.Equal(t, "USD", summary.Currency)
}

func TestOpenUnknownTenant(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Open(context.Background(), h.node.Generate().String())
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)

	_, err = h.svc.Open(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidID)
}

func TestUpgradeChargesProratedDifference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	summary, err = h.svc.SetTargetTier(ctx, summary.ID.String(), "full")
	require.NoError(t, err)

	assert.Equal(t, domain.ChangeKindUpgrade, summary.ChangeKind)
	assertMoney(t, "10.00", summary.Proration.AmountDue)
	assert.Equal(t, tenant.SubscriptionEnd, summary.Proration.NextExpiryDate)

	summary, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), leg("cash", "10"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, summary.State)

	result, err := h.svc.Commit(ctx, summary.ID.String())
	require.NoError(t, err)
	assert.Equal(t, plandomain.TierFull, result.Tier)
	assert.Equal(t, "2026-04-20", clock.FormatDate(result.NewExpiry))
	assertMoney(t, "0.00", result.NewCreditBalance)
	assert.NotEmpty(t, result.RenewalRef)

	stored := h.reload(t, tenant.ID)
	assert.Equal(t, plandomain.TierFull, stored.Tier)
	assert.Equal(t, "2026-04-20", clock.FormatDate(stored.SubscriptionEnd))
	assert.Equal(t, int64(2), stored.Version)
	assert.True(t, stored.HasBeenBilled)

	entries := h.entries(t, tenant.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, result.LedgerEntryIDs[0], entries[0].ID)
	assertMoney(t, "10.00", entries[0].Amount)
	assert.Contains(t, entries[0].Description, "Upgrade Toko Maju from intermediate to full")
}

func TestDowngradeGeneratesCredit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	summary, err = h.svc.SetTargetTier(ctx, summary.ID.String(), "basic")
	require.NoError(t, err)

	assert.Equal(t, domain.ChangeKindDowngrade, summary.ChangeKind)
	assertMoney(t, "10.00", summary.Proration.CreditToGenerate)
	assertMoney(t, "39.00", summary.Proration.AmountDue)
	assert.Equal(t, "2026-05-20", clock.FormatDate(summary.Proration.NextExpiryDate))

	_, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), domain.AddPaymentLegRequest{
		Method:    "bank_transfer",
		Amount:    decimal.RequireFromString("39"),
		Reference: "BCA-7781",
	})
	require.NoError(t, err)

	result, err := h.svc.Commit(ctx, summary.ID.String())
	require.NoError(t, err)
	assertMoney(t, "10.00", result.NewCreditBalance)
	assertMoney(t, "10.00", result.CreditGenerated)

	stored := h.reload(t, tenant.ID)
	assert.Equal(t, plandomain.TierBasic, stored.Tier)
	assertMoney(t, "10.00", stored.CreditBalance)
	assert.Equal(t, "2026-05-20", clock.FormatDate(stored.SubscriptionEnd))

	entries := h.entries(t, tenant.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "bank_main", entries[0].AccountCode)
	assert.Contains(t, entries[0].Description, "[BCA-7781]")
	assert.Contains(t, entries[0].Description, "Credit issued 10.00 for unused days of cycle ending 2026-04-20")
}

func TestCreditRenewalRefusedUntilFullyPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 20, "15", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()

	_, err = h.svc.SetUseCredit(ctx, id, true)
	require.NoError(t, err)
	summary, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "50"))
	require.NoError(t, err)

	assertMoney(t, "15.00", summary.Proration.CreditApplied)
	assertMoney(t, "4.00", summary.Outstanding)
	assert.False(t, summary.CanCommit)

	_, err = h.svc.Commit(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
	assert.Equal(t, tenant.Version, h.reload(t, tenant.ID).Version)
	assert.Empty(t, h.entries(t, tenant.ID))

	summary, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "4"))
	require.NoError(t, err)
	assertMoney(t, "0.00", summary.Outstanding)

	result, err := h.svc.Commit(ctx, id)
	require.NoError(t, err)
	assertMoney(t, "0.00", result.NewCreditBalance)
	assertMoney(t, "15.00", result.CreditApplied)

	stored := h.reload(t, tenant.ID)
	assertMoney(t, "0.00", stored.CreditBalance)
	assert.Equal(t, "2026-05-30", clock.FormatDate(stored.SubscriptionEnd))

	entries := h.entries(t, tenant.ID)
	require.Len(t, entries, 2)
	assertMoney(t, "50.00", entries[0].Amount)
	assertMoney(t, "4.00", entries[1].Amount)
	assert.Equal(t, entries[0].Description, entries[1].Description)
	assert.Equal(t, entries[0].RenewalRef, entries[1].RenewalRef)
	assert.Contains(t, entries[0].Description, "Cash 50.00; Cash 4.00")
	assert.Contains(t, entries[0].Description, "Credit applied 15.00 from cycle ending 2026-04-30")
}

func TestCommitToleranceBoundary(t *testing.T) {
	cases := []struct {
		name    string
		paid    string
		allowed bool
	}{
		{name: "exact", paid: "69", allowed: true},
		{name: "ten cents short", paid: "68.90", allowed: true},
		{name: "eleven cents short", paid: "68.89", allowed: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			tenant := h.seedTenant(t, plandomain.TierIntermediate, 5, "0", true)

			summary, err := h.svc.Open(ctx, tenant.ID.String())
			require.NoError(t, err)
			summary, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), leg("card", tc.paid))
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, summary.CanCommit)

			_, err = h.svc.Commit(ctx, summary.ID.String())
			if tc.allowed {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
		})
	}
}

func TestOverpaymentReportsChangeDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	summary, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), leg("cash", "50"))
	require.NoError(t, err)

	assertMoney(t, "-11.00", summary.Outstanding)
	assertMoney(t, "11.00", summary.ChangeDue)
	assert.True(t, summary.CanCommit)

	result, err := h.svc.Commit(ctx, summary.ID.String())
	require.NoError(t, err)
	assertMoney(t, "11.00", result.ChangeDue)
	assertMoney(t, "0.00", result.NewCreditBalance)
}

func TestAddPaymentLegRejectsNonPositiveAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()

	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "0"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "-5"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "0.004"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cheque", "5"))
	assert.Error(t, err)

	summary, err = h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, summary.Legs)
	assertMoney(t, "39.00", summary.Outstanding)
}

func TestRemovePaymentLegRecomputesOutstanding(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()

	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "20"))
	require.NoError(t, err)
	summary, err = h.svc.AddPaymentLeg(ctx, id, leg("mobile_wallet", "19"))
	require.NoError(t, err)
	require.Len(t, summary.Legs, 2)
	assert.True(t, summary.CanCommit)

	summary, err = h.svc.RemovePaymentLeg(ctx, id, summary.Legs[0].ID.String())
	require.NoError(t, err)
	require.Len(t, summary.Legs, 1)
	assertMoney(t, "20.00", summary.Outstanding)
	assert.Equal(t, domain.StateOpen, summary.State)

	_, err = h.svc.RemovePaymentLeg(ctx, id, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidLegID)
}

func TestCancelLeavesTenantUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "12.50", true)
	before := h.reload(t, tenant.ID)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()
	_, err = h.svc.SetTargetTier(ctx, id, "basic")
	require.NoError(t, err)
	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "39"))
	require.NoError(t, err)

	require.NoError(t, h.svc.Cancel(ctx, id))

	assert.Equal(t, before, h.reload(t, tenant.ID))
	assert.Empty(t, h.entries(t, tenant.ID))

	_, err = h.svc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.ErrorIs(t, h.svc.Cancel(ctx, id), domain.ErrTransactionNotFound)
	_, err = h.svc.Commit(ctx, id)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestCommitConsumesRenewal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	_, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), leg("cash", "39"))
	require.NoError(t, err)
	_, err = h.svc.Commit(ctx, summary.ID.String())
	require.NoError(t, err)

	_, err = h.svc.Commit(ctx, summary.ID.String())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Len(t, h.entries(t, tenant.ID), 1)
}

func TestSecondRenewalOnSameTenantIsStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "0", true)

	first, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	second, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)

	_, err = h.svc.AddPaymentLeg(ctx, first.ID.String(), leg("cash", "69"))
	require.NoError(t, err)
	_, err = h.svc.AddPaymentLeg(ctx, second.ID.String(), leg("cash", "69"))
	require.NoError(t, err)

	_, err = h.svc.Commit(ctx, first.ID.String())
	require.NoError(t, err)
	afterFirst := h.reload(t, tenant.ID)

	_, err = h.svc.Commit(ctx, second.ID.String())
	assert.ErrorIs(t, err, domain.ErrStaleTenantState)
	assert.Equal(t, afterFirst, h.reload(t, tenant.ID))
	assert.Len(t, h.entries(t, tenant.ID), 1)

	summary, err := h.svc.Get(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, summary.State)
	require.NoError(t, h.svc.Cancel(ctx, second.ID.String()))
}

func TestCommitWhileTenantLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	_, err = h.svc.AddPaymentLeg(ctx, summary.ID.String(), leg("cash", "39"))
	require.NoError(t, err)

	key := "tenantdesk:renewal:tenant:" + tenant.ID.String()
	_, ok, err := h.locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.Commit(ctx, summary.ID.String())
	assert.ErrorIs(t, err, domain.ErrTenantLocked)
	assert.Equal(t, tenant.Version, h.reload(t, tenant.ID).Version)

	summary, err = h.svc.Get(ctx, summary.ID.String())
	require.NoError(t, err)
	assert.True(t, summary.CanCommit)
}

func TestTrialTenantUpgradeStartsFreshCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 12, "0", false)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	summary, err = h.svc.SetTargetTier(ctx, summary.ID.String(), "full")
	require.NoError(t, err)

	assert.True(t, summary.Proration.IsTrial)
	assertMoney(t, "99.00", summary.Proration.AmountDue)
	assert.Equal(t, "2026-05-22", clock.FormatDate(summary.Proration.NextExpiryDate))
}

func TestUnknownRenewal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Get(ctx, h.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	_, err = h.svc.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = h.svc.SetTargetTier(ctx, h.node.Generate().String(), "gold")
	assert.ErrorIs(t, err, plandomain.ErrInvalidTier)
}

func TestIdleRenewalsAreSwept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierBasic, 3, "0", true)

	stale, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)

	h.clock.Advance(sessionIdleTTL + time.Minute)
	_, err = h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, stale.ID.String())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestSubCentLegDoesNotBlockCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "0", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()

	_, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "0.004"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	summary, err = h.svc.AddPaymentLeg(ctx, id, leg("cash", "69"))
	require.NoError(t, err)
	require.Len(t, summary.Legs, 1)
	assert.True(t, summary.CanCommit)

	result, err := h.svc.Commit(ctx, id)
	require.NoError(t, err)
	assert.Len(t, result.LedgerEntryIDs, 1)
}

func TestCommitRollsBackTenantWhenTreasuryFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "15", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()
	_, err = h.svc.SetUseCredit(ctx, id, true)
	require.NoError(t, err)
	summary, err = h.svc.AddPaymentLeg(ctx, id, leg("card", "54"))
	require.NoError(t, err)
	require.True(t, summary.CanCommit)

	noCard := config.DefaultRenewalConfig()
	delete(noCard.Accounts.Methods, "card")
	require.NoError(t, h.holder.Replace(noCard))

	_, err = h.svc.Commit(ctx, id)
	require.ErrorIs(t, err, treasurydomain.ErrAccountNotConfigured)

	stored := h.reload(t, tenant.ID)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, plandomain.TierIntermediate, stored.Tier)
	assert.Equal(t, tenant.SubscriptionEnd, stored.SubscriptionEnd)
	assertMoney(t, "15.00", stored.CreditBalance)
	assert.Empty(t, h.entries(t, tenant.ID))

	summary, err = h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, summary.State)
	assert.Len(t, summary.Legs, 1)

	require.NoError(t, h.holder.Replace(config.DefaultRenewalConfig()))
	result, err := h.svc.Commit(ctx, id)
	require.NoError(t, err)
	assert.Len(t, result.LedgerEntryIDs, 1)
	assert.Equal(t, int64(2), h.reload(t, tenant.ID).Version)
}

func TestCreditOnlyRenewalKeepsDescription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tenant := h.seedTenant(t, plandomain.TierIntermediate, 10, "15", true)

	summary, err := h.svc.Open(ctx, tenant.ID.String())
	require.NoError(t, err)
	id := summary.ID.String()
	_, err = h.svc.SetTargetTier(ctx, id, "full")
	require.NoError(t, err)
	summary, err = h.svc.SetUseCredit(ctx, id, true)
	require.NoError(t, err)
	assertMoney(t, "10.00", summary.Proration.CreditApplied)
	require.True(t, summary.CanCommit)

	result, err := h.svc.Commit(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, result.LedgerEntryIDs)
	assertMoney(t, "5.00", result.NewCreditBalance)
	assert.Contains(t, result.Description, "No payment collected.")
	assert.Contains(t, result.Description, "Credit applied 10.00")
	assert.Empty(t, h.entries(t, tenant.ID))
}

func TestOpenRefusesUnpricedTier(t *testing.T) {
	h := newHarness(t)
	tenant := h.seedTenant(t, plandomain.Tier("gold"), 10, "0", true)

	_, err := h.svc.Open(context.Background(), tenant.ID.String())
	assert.ErrorIs(t, err, plandomain.ErrInvalidTier)
}
