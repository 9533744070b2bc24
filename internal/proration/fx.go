package proration

import (
	"github.com/smallbiznis/tenantdesk/internal/proration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("proration.calculator",
	fx.Provide(service.NewCalculator),
)
