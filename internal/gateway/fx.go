package gateway

import (
	"github.com/smallbiznis/recurflow/internal/gateway/repository"
	"github.com/smallbiznis/recurflow/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewAdapter),
)
