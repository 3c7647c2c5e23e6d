package swap

import (
	"github.com/smallbiznis/recurflow/internal/swap/service"
	"go.uber.org/fx"
)

var Module = fx.Module("swap.service",
	fx.Provide(service.NewService),
)
