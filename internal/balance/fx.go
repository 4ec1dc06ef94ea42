package balance

import (
	"github.com/flasti/ledger/internal/balance/repository"
	"github.com/flasti/ledger/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
