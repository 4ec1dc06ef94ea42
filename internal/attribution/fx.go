package attribution

import (
	"github.com/flasti/ledger/internal/attribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution",
	fx.Provide(
		service.New,
	),
)
