package affiliate

import (
	"github.com/flasti/ledger/internal/affiliate/repository"
	"github.com/flasti/ledger/internal/affiliate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("affiliate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
