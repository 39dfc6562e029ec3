package notification

import (
	"github.com/smallbiznis/dunning/internal/notification/service"
	"github.com/smallbiznis/dunning/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(service.NewEmailGateway),
)
