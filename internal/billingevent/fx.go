package billingevent

import (
	"github.com/smallbiznis/recurflow/internal/billingevent/repository"
	"github.com/smallbiznis/recurflow/internal/billingevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(NewWorker),
	fx.Invoke(RegisterWorker),
)
