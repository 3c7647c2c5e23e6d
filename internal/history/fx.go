package history

import (
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	"github.com/smallbiznis/recurflow/internal/history/service"
	"github.com/smallbiznis/recurflow/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("history.service",
	fx.Provide(repository.ProvideStore[historydomain.HistoryNote]),
	fx.Provide(service.NewService),
)
