package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	"github.com/flasti/ledger/internal/config"
	eventsdomain "github.com/flasti/ledger/internal/events/domain"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/internal/seed"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}
		return seed.EnsureDefaultRates(conn, genID)
	}),
)

// AutoMigrate builds the schema from the models for the dialects the
// SQL migrations do not cover (sqlite and mysql).
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&affiliatedomain.Affiliate{},
		&visitdomain.Visit{},
		&saledomain.Sale{},
		&balancedomain.Account{},
		&balancedomain.Entry{},
		&commissiondomain.Rate{},
		&auditdomain.AuditLog{},
		&eventsdomain.OutboxEvent{},
	)
}
