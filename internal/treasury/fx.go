package treasury

import (
	"github.com/smallbiznis/tenantdesk/internal/treasury/repository"
	"github.com/smallbiznis/tenantdesk/internal/treasury/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treasury.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
