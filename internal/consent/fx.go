package consent

import (
	"github.com/smallbiznis/recurflow/internal/consent/repository"
	"github.com/smallbiznis/recurflow/internal/consent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
