package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/events/domain"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dispatchInterval = 5 * time.Second
	dispatchBatch    = 100
	channelPrefix    = "ledger.events."
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Redis *goredis.Client `optional:"true"`
}

type publisher struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	redis *goredis.Client

	stop chan struct{}
	done chan struct{}
}

func New(p Params) domain.Publisher {
	return &publisher{
		db:    p.DB,
		log:   p.Log.Named("events.publisher"),
		genID: p.GenID,
		repo:  p.Repo,
		redis: p.Redis,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *publisher) Enqueue(ctx context.Context, tx *gorm.DB, eventType, transactionID string, payload map[string]any) error {
	event := &domain.OutboxEvent{
		ID:            s.genID.Generate(),
		Type:          eventType,
		TransactionID: transactionID,
		Payload:       datatypes.JSONMap(payload),
		Status:        domain.EventPending,
		CreatedAt:     time.Now(),
	}
	_, err := s.repo.InsertIfAbsent(ctx, tx, event)
	return err
}

// Run drains pending events until Shutdown. It is started from the fx
// lifecycle, not from the constructor.
func (s *publisher) Run() {
	defer close(s.done)
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.dispatchBatch(context.Background())
		}
	}
}

func (s *publisher) Shutdown(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *publisher) dispatchBatch(ctx context.Context) {
	events, err := s.repo.FindPending(ctx, s.db, dispatchBatch)
	if err != nil {
		s.log.Error("failed to load pending events", zap.Error(err))
		return
	}
	for _, event := range events {
		if err := s.publish(ctx, event); err != nil {
			s.log.Warn("event publish failed",
				zap.String("type", event.Type),
				zap.String("transaction_id", event.TransactionID),
				zap.Error(err),
			)
			if err := s.repo.MarkFailed(ctx, s.db, int64(event.ID)); err != nil {
				s.log.Error("failed to record publish attempt", zap.Error(err))
			}
			continue
		}
		if err := s.repo.MarkSent(ctx, s.db, int64(event.ID)); err != nil {
			s.log.Error("failed to mark event sent", zap.Error(err))
		}
	}
}

func (s *publisher) publish(ctx context.Context, event *domain.OutboxEvent) error {
	if s.redis == nil {
		// No broker configured: log the event and consider it delivered.
		s.log.Info("event",
			zap.String("type", event.Type),
			zap.String("transaction_id", event.TransactionID),
			zap.Any("payload", map[string]any(event.Payload)),
		)
		return nil
	}
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, channelPrefix+event.Type, body).Err()
}
