package ticket

import (
	"github.com/smallbiznis/dunning/internal/ticket/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ticket.repository",
	fx.Provide(repository.Provide),
)
