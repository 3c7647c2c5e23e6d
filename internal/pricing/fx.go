package pricing

import (
	"github.com/smallbiznis/recurflow/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(service.NewService),
)
