package events

import (
	"context"

	"github.com/flasti/ledger/internal/events/domain"
	"github.com/flasti/ledger/internal/events/repository"
	"github.com/flasti/ledger/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(
		repository.Provide,
		service.New,
	),
	fx.Invoke(registerDispatcher),
)

type dispatcher interface {
	Run()
	Shutdown(ctx context.Context) error
}

func registerDispatcher(lc fx.Lifecycle, pub domain.Publisher) {
	d, ok := pub.(dispatcher)
	if !ok {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go d.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Shutdown(ctx)
		},
	})
}
