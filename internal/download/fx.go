package download

import (
	"github.com/smallbiznis/digistore/internal/download/repository"
	"github.com/smallbiznis/digistore/internal/download/service"
	"go.uber.org/fx"
)

var Module = fx.Module("download.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewIssuer),
	fx.Provide(service.NewGateway),
)
