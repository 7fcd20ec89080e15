package payment

import (
	"github.com/smallbiznis/boostd/internal/payment/adapters"
	"github.com/smallbiznis/boostd/internal/payment/adapters/external"
	"github.com/smallbiznis/boostd/internal/payment/adapters/wallet"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"github.com/smallbiznis/boostd/internal/payment/repository"
	paymentservice "github.com/smallbiznis/boostd/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			wallet.NewFactory(),
			external.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(s *paymentservice.Service) paymentdomain.Gateway { return s }),
	fx.Provide(func(s *paymentservice.Service) paymentdomain.ChargeLog { return s }),
)
