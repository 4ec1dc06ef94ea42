package payout

import (
	"github.com/flasti/ledger/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(
		service.New,
	),
)
