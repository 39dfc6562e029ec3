package billingrun

import (
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingrun",
	fx.Provide(service.NewOrchestrator),
	fx.Provide(func(o *service.Orchestrator) domain.Runner { return o }),
)
