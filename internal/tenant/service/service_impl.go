package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/config"
	obslogger "github.com/smallbiznis/tenantdesk/internal/observability/logger"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	"github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Catalog plandomain.Catalog
	Config  *config.RenewalConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	catalog plandomain.Catalog
	cfg     *config.RenewalConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("tenant.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		catalog: p.Catalog,
		cfg:     p.Config,
	}
}

func (s *Service) Onboard(ctx context.Context, req domain.OnboardRequest) (domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tenant{}, domain.ErrInvalidName
	}

	rawSlug := strings.TrimSpace(req.Slug)
	if rawSlug == "" {
		rawSlug = name
	}
	tenantSlug := slug.Make(rawSlug)
	if tenantSlug == "" {
		return domain.Tenant{}, domain.ErrInvalidSlug
	}

	existing, err := s.repo.FindBySlug(ctx, s.db, tenantSlug)
	if err != nil {
		return domain.Tenant{}, err
	}
	if existing != nil {
		return domain.Tenant{}, domain.ErrSlugTaken
	}

	cfg := s.cfg.Get()
	now := s.clock.Now().UTC()
	tenant := domain.Tenant{
		ID:              s.genID.Generate(),
		Name:            name,
		Slug:            tenantSlug,
		Tier:            s.catalog.TrialTier(),
		SubscriptionEnd: clock.AddDays(now, cfg.TrialDays),
		CreditBalance:   decimal.Zero,
		HasBeenBilled:   false,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &tenant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Tenant{}, domain.ErrSlugTaken
		}
		return domain.Tenant{}, err
	}

	obslogger.WithTenant(obslogger.WithContext(ctx, s.log), tenant.ID.String()).Info("tenant onboarded",
		zap.String("slug", tenant.Slug),
		zap.String("tier", string(tenant.Tier)),
		zap.String("subscription_end", clock.FormatDate(tenant.SubscriptionEnd)),
	)

	return tenant, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Tenant, error) {
	tenantID, err := ParseID(id)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return *tenant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTenantRequest) (domain.ListTenantResponse, error) {
	filter := domain.ListTenantFilter{}
	if tier := strings.TrimSpace(req.Tier); tier != "" {
		parsed, err := s.catalog.ParseTier(tier)
		if err != nil {
			return domain.ListTenantResponse{}, err
		}
		filter.Tier = string(parsed)
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListTenantResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, page.Size(), func(t *domain.Tenant) string {
		return pagination.IDCursor(int64(t.ID))
	})
	if pageInfo.HasMore {
		items = items[:page.Size()]
	}

	tenants := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenants = append(tenants, *item)
	}

	return domain.ListTenantResponse{PageInfo: *pageInfo, Tenants: tenants}, nil
}

// ParseID parses a snowflake tenant id from its decimal form.
func ParseID(value string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}
