package boost

import (
	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/boost/repository"
	"github.com/smallbiznis/boostd/internal/boost/service"
	"go.uber.org/fx"
)

var Module = fx.Module("boost.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) domain.SweepService { return s }),
)
