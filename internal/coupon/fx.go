package coupon

import (
	"github.com/smallbiznis/recurflow/internal/coupon/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("coupon",
	fx.Provide(repository.Provide),
)
