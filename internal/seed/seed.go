// Package seed installs the default commission ladder on first boot so
// a fresh install quotes sensible rates before anyone touches the rate
// table: 50% at level 1, 60% at level 2, 70% at level 3.
package seed

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
)

var defaultRates = []struct {
	level   int
	rateBps int64
}{
	{1, 5000},
	{2, 6000},
	{3, 7000},
}

func EnsureDefaultRates(db *gorm.DB, genID *snowflake.Node) error {
	for _, r := range defaultRates {
		rate := commissiondomain.Rate{
			ID:      genID.Generate(),
			Level:   r.level,
			RateBps: r.rateBps,
		}
		err := db.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "level"}, {Name: "product_id"}},
				DoNothing: true,
			}).
			Create(&rate).Error
		if err != nil {
			return err
		}
	}
	return nil
}
