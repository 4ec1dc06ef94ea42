package visit

import (
	"github.com/flasti/ledger/internal/visit/repository"
	"github.com/flasti/ledger/internal/visit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("visit",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
