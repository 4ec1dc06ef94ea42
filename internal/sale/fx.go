package sale

import (
	"github.com/flasti/ledger/internal/sale/repository"
	"github.com/flasti/ledger/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
