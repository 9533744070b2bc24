package migration

import (
	"context"

	"github.com/smallbiznis/tenantdesk/internal/config"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, treasury treasurydomain.Service, log *zap.Logger) error {
		return Apply(context.Background(), conn, cfg, treasury, log.Named("migration"))
	}),
)
