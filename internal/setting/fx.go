package setting

import (
	"github.com/smallbiznis/dunning/internal/setting/repository"
	"github.com/smallbiznis/dunning/internal/setting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("setting.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
