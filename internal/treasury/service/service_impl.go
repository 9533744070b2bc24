package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantdesk/internal/config"
	obsmetrics "github.com/smallbiznis/tenantdesk/internal/observability/metrics"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	"github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Config     *config.RenewalConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	cfg        *config.RenewalConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("treasury.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		cfg:        p.Config,
		obsMetrics: p.ObsMetrics,
	}
}

type legSnapshot struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) ([]domain.Entry, error) {
	if tx == nil {
		return nil, domain.ErrTransactionRequired
	}
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	ref := strings.TrimSpace(req.RenewalRef)
	if ref == "" {
		return nil, domain.ErrInvalidRenewalRef
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidDescription
	}
	if len(req.Legs) == 0 {
		return []domain.Entry{}, nil
	}

	cfg := s.cfg.Get()
	snapshot := make([]legSnapshot, 0, len(req.Legs))
	for _, leg := range req.Legs {
		if !leg.Amount.IsPositive() {
			return nil, domain.ErrInvalidEntryAmount
		}
		snapshot = append(snapshot, legSnapshot{
			ID:        leg.ID.String(),
			Method:    string(leg.Method),
			Amount:    leg.Amount.StringFixed(2),
			Reference: leg.Reference,
		})
	}
	legsJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	settledAt := req.SettledAt.UTC()
	entries := make([]*domain.Entry, 0, len(req.Legs))
	for _, leg := range req.Legs {
		account, err := accountFor(cfg, leg.Method)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &domain.Entry{
			ID:          s.genID.Generate(),
			TenantID:    req.TenantID,
			RenewalRef:  ref,
			SettledAt:   settledAt,
			Amount:      leg.Amount.Round(2),
			Currency:    cfg.Currency,
			Method:      leg.Method,
			Reference:   leg.Reference,
			AccountCode: account.Code,
			Description: description,
			Legs:        datatypes.JSON(legsJSON),
			CreatedAt:   settledAt,
		})
	}

	if err := s.repo.InsertEntries(ctx, tx, entries); err != nil {
		return nil, err
	}

	out := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		s.obsMetrics.RecordTreasuryEntry(ctx, string(entry.Method), entry.Amount)
		out = append(out, *entry)
	}
	return out, nil
}

func (s *Service) ListByTenant(ctx context.Context, req domain.ListEntriesRequest) (domain.ListEntriesResponse, error) {
	tenantID, err := strconv.ParseInt(strings.TrimSpace(req.TenantID), 10, 64)
	if err != nil || tenantID <= 0 {
		return domain.ListEntriesResponse{}, domain.ErrInvalidTenant
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	items, err := s.repo.ListByTenant(ctx, s.db, snowflake.ID(tenantID), page)
	if err != nil {
		return domain.ListEntriesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, page.Size(), func(e *domain.Entry) string {
		return pagination.IDCursor(int64(e.ID))
	})
	if pageInfo.HasMore {
		items = items[:page.Size()]
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return domain.ListEntriesResponse{PageInfo: *pageInfo, Entries: entries}, nil
}

func (s *Service) AccountBalances(ctx context.Context) ([]domain.AccountBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.TotalsByAccount(ctx, s.db)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]domain.AccountTotal, len(totals))
	for _, total := range totals {
		byCode[total.AccountCode] = total
	}

	balances := make([]domain.AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		if account == nil {
			continue
		}
		total := byCode[account.Code]
		balances = append(balances, domain.AccountBalance{
			Account:    *account,
			Balance:    total.Total.Round(2),
			EntryCount: total.EntryCount,
		})
	}
	return balances, nil
}

func (s *Service) EnsureAccounts(ctx context.Context) error {
	cfg := s.cfg.Get()
	accounts := []*domain.Account{{
		Code: cfg.Accounts.CashDrawer.Code,
		Name: nameOr(cfg.Accounts.CashDrawer),
		Kind: domain.AccountKindCashDrawer,
	}}
	for _, account := range cfg.Accounts.Methods {
		if strings.TrimSpace(account.Code) == "" || account.Code == cfg.Accounts.CashDrawer.Code {
			continue
		}
		accounts = append(accounts, &domain.Account{
			Code: account.Code,
			Name: nameOr(account),
			Kind: domain.AccountKindBank,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, account := range accounts {
			if err := s.repo.UpsertAccount(ctx, tx, account); err != nil {
				return err
			}
		}
		s.log.Info("treasury accounts ensured", zap.Int("count", len(accounts)))
		return nil
	})
}

// accountFor routes cash to the drawer and every other method to its configured bank account.
func accountFor(cfg config.RenewalConfig, method paymentlegdomain.Method) (config.AccountConfig, error) {
	if method == paymentlegdomain.MethodCash {
		return cfg.Accounts.CashDrawer, nil
	}
	account, ok := cfg.Accounts.Methods[string(method)]
	if !ok || strings.TrimSpace(account.Code) == "" {
		return config.AccountConfig{}, domain.ErrAccountNotConfigured
	}
	return account, nil
}

func nameOr(account config.AccountConfig) string {
	if name := strings.TrimSpace(account.Name); name != "" {
		return name
	}
	return account.Code
}
