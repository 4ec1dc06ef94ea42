package audit

import (
	"github.com/flasti/ledger/internal/audit/repository"
	"github.com/flasti/ledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
