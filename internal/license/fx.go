package license

import (
	"github.com/smallbiznis/dunning/internal/license/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("license.repository",
	fx.Provide(repository.Provide),
)
