package tenant

import (
	"github.com/smallbiznis/tenantdesk/internal/tenant/repository"
	"github.com/smallbiznis/tenantdesk/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
