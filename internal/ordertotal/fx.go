package ordertotal

import (
	"github.com/smallbiznis/recurflow/internal/ordertotal/repository"
	"github.com/smallbiznis/recurflow/internal/ordertotal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ordertotal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
