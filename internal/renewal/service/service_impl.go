package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/config"
	"github.com/smallbiznis/tenantdesk/internal/lock"
	obscontext "github.com/smallbiznis/tenantdesk/internal/observability/context"
	obslogger "github.com/smallbiznis/tenantdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tenantdesk/internal/observability/metrics"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	paymentlegservice "github.com/smallbiznis/tenantdesk/internal/paymentleg/service"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	prorationdomain "github.com/smallbiznis/tenantdesk/internal/proration/domain"
	"github.com/smallbiznis/tenantdesk/internal/renewal/domain"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	commitLockTTL  = 30 * time.Second
	commitLockWait = 3 * time.Second
	// sessionIdleTTL bounds how long an abandoned renewal stays in memory.
	sessionIdleTTL = 12 * time.Hour
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Config         *config.RenewalConfigHolder
	Catalog        plandomain.Catalog
	Calculator     prorationdomain.Calculator
	TenantRepo     tenantdomain.Repository
	Treasury       treasurydomain.Service
	Locker         lock.Locker
	ObsMetrics     *obsmetrics.Metrics        `optional:"true"`
	RenewalMetrics *obsmetrics.RenewalMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	cfg            *config.RenewalConfigHolder
	catalog        plandomain.Catalog
	calc           prorationdomain.Calculator
	tenantRepo     tenantdomain.Repository
	treasury       treasurydomain.Service
	locker         lock.Locker
	obsMetrics     *obsmetrics.Metrics
	renewalMetrics *obsmetrics.RenewalMetrics
	tracer         trace.Tracer
	lockTTL        time.Duration
	lockWait       time.Duration

	mu       sync.Mutex
	sessions map[snowflake.ID]*transaction
}

// transaction is one open renewal. Its own mutex serializes operator actions on it.
type transaction struct {
	mu sync.Mutex

	id        snowflake.ID
	tenant    tenantdomain.Tenant
	target    plandomain.Tier
	useCredit bool
	legs      *paymentlegservice.Collector
	proration prorationdomain.Result
	state     domain.State
	openedAt  time.Time
	touchedAt time.Time
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("renewal.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		cfg:            p.Config,
		catalog:        p.Catalog,
		calc:           p.Calculator,
		tenantRepo:     p.TenantRepo,
		treasury:       p.Treasury,
		locker:         p.Locker,
		obsMetrics:     p.ObsMetrics,
		renewalMetrics: p.RenewalMetrics,
		tracer:         otel.Tracer("tenantdesk/renewal"),
		lockTTL:        commitLockTTL,
		lockWait:       commitLockWait,
		sessions:       make(map[snowflake.ID]*transaction),
	}
}

func (s *Service) Open(ctx context.Context, tenantID string) (domain.Summary, error) {
	id, err := parseSnowflake(tenantID, tenantdomain.ErrInvalidID)
	if err != nil {
		return domain.Summary{}, err
	}

	tenant, err := s.tenantRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Summary{}, err
	}
	if tenant == nil {
		return domain.Summary{}, tenantdomain.ErrTenantNotFound
	}
	// an unpriced tier would prorate every target from a zero daily rate
	if _, ok := s.catalog.Lookup(tenant.Tier); !ok {
		return domain.Summary{}, plandomain.ErrInvalidTier
	}

	now := s.clock.Now().UTC()
	tx := &transaction{
		id:        s.genID.Generate(),
		tenant:    *tenant,
		target:    tenant.Tier,
		legs:      paymentlegservice.NewCollector(s.genID),
		state:     domain.StateOpen,
		openedAt:  now,
		touchedAt: now,
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	summary := s.refresh(tx)

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[tx.id] = tx
	open := len(s.sessions)
	s.mu.Unlock()

	s.renewalMetrics.SetOpenSessions(open)
	s.obsMetrics.RecordRenewalOpened(ctx, string(tenant.Tier))
	s.logger(ctx, tenant.ID).Info("renewal opened",
		zap.String("renewal_id", tx.id.String()),
		zap.String("tier", string(tenant.Tier)),
		zap.String("subscription_end", clock.FormatDate(tenant.SubscriptionEnd)),
	)

	return summary, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Summary, error) {
	return s.mutate(ctx, id, func(*transaction) error { return nil })
}

func (s *Service) SetTargetTier(ctx context.Context, id string, tier string) (domain.Summary, error) {
	target, err := s.catalog.ParseTier(tier)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.mutate(ctx, id, func(tx *transaction) error {
		tx.target = target
		return nil
	})
}

func (s *Service) SetUseCredit(ctx context.Context, id string, useCredit bool) (domain.Summary, error) {
	return s.mutate(ctx, id, func(tx *transaction) error {
		tx.useCredit = useCredit
		return nil
	})
}

func (s *Service) AddPaymentLeg(ctx context.Context, id string, req domain.AddPaymentLegRequest) (domain.Summary, error) {
	method, err := paymentlegdomain.ParseMethod(req.Method)
	if err != nil {
		return domain.Summary{}, err
	}
	if !req.Amount.Round(2).IsPositive() {
		return domain.Summary{}, domain.ErrInvalidAmount
	}
	return s.mutate(ctx, id, func(tx *transaction) error {
		_, err := tx.legs.Add(method, req.Amount, req.Reference)
		return err
	})
}

func (s *Service) RemovePaymentLeg(ctx context.Context, id string, legID string) (domain.Summary, error) {
	leg, err := parseSnowflake(legID, domain.ErrInvalidLegID)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.mutate(ctx, id, func(tx *transaction) error {
		tx.legs.Remove(leg)
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	tx, err := s.lookup(id)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state.Closed() {
		return domain.ErrTransactionClosed
	}

	tx.state = domain.StateCancelled
	tx.legs.Reset()
	tx.proration = prorationdomain.Result{}
	s.forget(tx.id)

	s.obsMetrics.RecordRenewalCancelled(ctx)
	obslogger.WithRenewal(s.logger(ctx, tx.tenant.ID), tx.id.String()).Info("renewal cancelled")
	return nil
}

func (s *Service) Commit(ctx context.Context, id string) (domain.CommitResult, error) {
	ctx, span := s.tracer.Start(ctx, "renewal.commit")
	defer span.End()

	tx, err := s.lookup(id)
	if err != nil {
		return domain.CommitResult{}, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state.Closed() {
		return domain.CommitResult{}, domain.ErrTransactionClosed
	}

	ctx = obscontext.WithTenantID(ctx, tx.tenant.ID.String())
	log := obslogger.WithRenewal(s.logger(ctx, tx.tenant.ID), tx.id.String())
	span.SetAttributes(
		attribute.String("renewal_id", tx.id.String()),
		attribute.String("tenant_id", tx.tenant.ID.String()),
	)

	for _, tier := range []plandomain.Tier{tx.tenant.Tier, tx.target} {
		if _, ok := s.catalog.Lookup(tier); !ok {
			return domain.CommitResult{}, plandomain.ErrInvalidTier
		}
	}

	summary := s.refresh(tx)
	if !summary.CanCommit {
		s.obsMetrics.RecordRenewalRefused(ctx, obsmetrics.CommitOutcomeInsufficientPayment)
		s.renewalMetrics.IncCommit(obsmetrics.CommitOutcomeInsufficientPayment)
		log.Debug("renewal commit refused", zap.String("outstanding", summary.Outstanding.StringFixed(2)))
		return domain.CommitResult{}, domain.ErrInsufficientPayment
	}

	lockKey := fmt.Sprintf("tenantdesk:renewal:tenant:%d", tx.tenant.ID)
	waitStart := time.Now()
	token, err := lock.Acquire(ctx, s.locker, lockKey, s.lockTTL, s.lockWait, 0)
	s.renewalMetrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.obsMetrics.RecordRenewalRefused(ctx, obsmetrics.CommitOutcomeLocked)
			s.renewalMetrics.IncCommit(obsmetrics.CommitOutcomeLocked)
			return domain.CommitResult{}, domain.ErrTenantLocked
		}
		return domain.CommitResult{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, lockKey, token); err != nil {
			log.Warn("release renewal lock failed", zap.Error(err))
		}
	}()

	result, err := s.commitLocked(ctx, tx, summary)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleTenantState), errors.Is(err, tenantdomain.ErrTenantNotFound):
			s.obsMetrics.RecordRenewalRefused(ctx, obsmetrics.CommitOutcomeStaleTenant)
			s.renewalMetrics.IncCommit(obsmetrics.CommitOutcomeStaleTenant)
			log.Warn("renewal commit rejected on stale tenant state", zap.Int64("snapshot_version", tx.tenant.Version))
		default:
			s.renewalMetrics.IncCommitError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit failed")
			log.Error("renewal commit failed",
				zap.Error(err),
				zap.Bool("retryable", obsmetrics.IsRetryableCommitError(err)),
			)
		}
		return domain.CommitResult{}, err
	}

	tx.state = domain.StateCommitted
	tx.legs.Reset()
	tx.proration = prorationdomain.Result{}
	s.forget(tx.id)

	s.renewalMetrics.IncCommit(obsmetrics.CommitOutcomeCommitted)
	s.obsMetrics.RecordRenewalCommitted(ctx, string(summary.ChangeKind), string(result.Tier))
	log.Info("renewal committed",
		zap.String("renewal_ref", result.RenewalRef),
		zap.String("change_kind", string(summary.ChangeKind)),
		zap.String("tier", string(result.Tier)),
		zap.String("new_expiry", clock.FormatDate(result.NewExpiry)),
		zap.String("new_credit_balance", result.NewCreditBalance.StringFixed(2)),
		zap.Int("ledger_entries", len(result.LedgerEntryIDs)),
	)
	if len(result.LedgerEntryIDs) == 0 {
		// no leg means no treasury row; keep the credit movement on record
		log.Info("renewal settled without payment", zap.String("description", result.Description))
	}

	return result, nil
}

// commitLocked applies the tenant update and the treasury entries as one unit. The caller
// holds the per-tenant lock; the row lock and version check catch writers that bypass it.
func (s *Service) commitLocked(ctx context.Context, tx *transaction, summary domain.Summary) (domain.CommitResult, error) {
	started := time.Now()
	defer func() { s.renewalMetrics.ObserveCommitDuration(time.Since(started)) }()

	now := s.clock.Now().UTC()
	prior := tx.tenant
	res := summary.Proration
	ref := ulid.Make().String()
	newCredit := prior.CreditBalance.Sub(res.CreditApplied).Add(res.CreditToGenerate).Round(2)

	description := describe(ref, prior, summary)
	var entries []treasurydomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		current, err := s.tenantRepo.FindByIDForUpdate(ctx, db, prior.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return tenantdomain.ErrTenantNotFound
		}
		if current.Version != prior.Version {
			return domain.ErrStaleTenantState
		}
		if newCredit.IsNegative() {
			return domain.ErrStaleTenantState
		}

		updated, err := s.tenantRepo.UpdateSubscription(ctx, db, tenantdomain.SubscriptionUpdate{
			ID:              prior.ID,
			ExpectedVersion: prior.Version,
			Tier:            tx.target,
			SubscriptionEnd: res.NextExpiryDate,
			CreditBalance:   newCredit,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrStaleTenantState
		}

		entries, err = s.treasury.Record(ctx, db, treasurydomain.RecordRequest{
			TenantID:    prior.ID,
			RenewalRef:  ref,
			SettledAt:   now,
			Legs:        summary.Legs,
			Description: description,
		})
		return err
	})
	if err != nil {
		return domain.CommitResult{}, err
	}

	ids := make([]snowflake.ID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	return domain.CommitResult{
		RenewalID:        tx.id,
		RenewalRef:       ref,
		TenantID:         prior.ID,
		Tier:             tx.target,
		NewExpiry:        res.NextExpiryDate,
		NewCreditBalance: newCredit,
		CreditApplied:    res.CreditApplied,
		CreditGenerated:  res.CreditToGenerate,
		ChangeDue:        summary.ChangeDue,
		LedgerEntryIDs:   ids,
		Description:      description,
		CommittedAt:      now,
	}, nil
}

// mutate applies fn to an open renewal and returns the recomputed summary. A failing fn
// leaves the renewal unchanged.
func (s *Service) mutate(ctx context.Context, id string, fn func(*transaction) error) (domain.Summary, error) {
	tx, err := s.lookup(id)
	if err != nil {
		return domain.Summary{}, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state.Closed() {
		return domain.Summary{}, domain.ErrTransactionClosed
	}
	if err := fn(tx); err != nil {
		return domain.Summary{}, err
	}
	tx.touchedAt = s.clock.Now().UTC()
	return s.refresh(tx), nil
}

// refresh recomputes proration against today and derives the outstanding balance. The
// caller holds tx.mu.
func (s *Service) refresh(tx *transaction) domain.Summary {
	cfg := s.cfg.Get()
	tx.proration = s.calc.Compute(prorationdomain.Input{
		CurrentTier:     tx.tenant.Tier,
		SubscriptionEnd: tx.tenant.SubscriptionEnd,
		CreditBalance:   tx.tenant.CreditBalance,
		HasBeenBilled:   tx.tenant.HasBeenBilled,
		TargetTier:      tx.target,
		AsOf:            clock.Today(s.clock),
		UseCredit:       tx.useCredit,
	})

	legsTotal := tx.legs.Total()
	outstanding := tx.proration.AmountDue.Sub(legsTotal)
	tolerance := decimal.NewFromFloat(cfg.SettlementTolerance)
	settled := outstanding.LessThanOrEqual(tolerance)

	changeDue := decimal.Zero
	if outstanding.IsNegative() {
		changeDue = outstanding.Neg()
	}

	state := tx.state
	if state == domain.StateOpen || state == domain.StateSettled {
		state = domain.StateOpen
		if settled {
			state = domain.StateSettled
		}
		tx.state = state
	}

	return domain.Summary{
		ID:              tx.id,
		TenantID:        tx.tenant.ID,
		TenantName:      tx.tenant.Name,
		CurrentTier:     tx.tenant.Tier,
		TargetTier:      tx.target,
		ChangeKind:      changeKind(tx.proration),
		SubscriptionEnd: tx.tenant.SubscriptionEnd,
		CreditBalance:   tx.tenant.CreditBalance,
		UseCredit:       tx.useCredit,
		Currency:        cfg.Currency,
		State:           state,
		Proration:       tx.proration,
		Legs:            tx.legs.Legs(),
		LegsTotal:       legsTotal,
		Outstanding:     outstanding,
		ChangeDue:       changeDue,
		CanCommit:       settled,
		OpenedAt:        tx.openedAt,
	}
}

func (s *Service) lookup(id string) (*transaction, error) {
	txID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.sessions[txID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Service) forget(id snowflake.ID) {
	s.mu.Lock()
	delete(s.sessions, id)
	open := len(s.sessions)
	s.mu.Unlock()
	s.renewalMetrics.SetOpenSessions(open)
}

// sweepLocked drops renewals nobody has touched for sessionIdleTTL. The caller holds s.mu.
func (s *Service) sweepLocked(now time.Time) {
	for id, tx := range s.sessions {
		if !tx.mu.TryLock() {
			continue
		}
		if now.Sub(tx.touchedAt) > sessionIdleTTL {
			tx.state = domain.StateCancelled
			delete(s.sessions, id)
			s.log.Info("idle renewal discarded", zap.String("renewal_id", id.String()))
		}
		tx.mu.Unlock()
	}
}

func (s *Service) logger(ctx context.Context, tenantID snowflake.ID) *zap.Logger {
	if obscontext.TenantIDFromContext(ctx) == "" {
		ctx = obscontext.WithTenantID(ctx, tenantID.String())
	}
	return obslogger.WithContext(ctx, s.log)
}

func changeKind(res prorationdomain.Result) domain.ChangeKind {
	switch {
	case res.IsUpgrade:
		return domain.ChangeKindUpgrade
	case res.IsDowngrade:
		return domain.ChangeKindDowngrade
	default:
		return domain.ChangeKindRenewal
	}
}

func parseSnowflake(value string, invalid error) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return snowflake.ID(id), nil
}
