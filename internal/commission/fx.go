package commission

import (
	"github.com/flasti/ledger/internal/commission/repository"
	"github.com/flasti/ledger/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
