package payment

import (
	"github.com/smallbiznis/digistore/internal/payment/adapters"
	"github.com/smallbiznis/digistore/internal/payment/adapters/stripe"
	"github.com/smallbiznis/digistore/internal/payment/repository"
	paymentservice "github.com/smallbiznis/digistore/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(paymentservice.NewService),
)
