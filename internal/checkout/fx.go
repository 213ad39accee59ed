package checkout

import (
	"github.com/smallbiznis/digistore/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(service.NewStripeClient),
	fx.Provide(service.New),
)
