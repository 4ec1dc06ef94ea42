// Package fraud holds the self-referral check and the velocity monitor.
// The self-referral check blocks attribution; the velocity monitor only
// flags. Neither ever blocks a sale from being recorded.
package fraud

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/internal/clock"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/observability/metrics"
	"github.com/flasti/ledger/internal/requestctx"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
)

const (
	FlagVelocityIP        = "velocity_ip"
	FlagVelocityAffiliate = "velocity_affiliate"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Guard    *config.GuardConfigHolder
	SaleRepo saledomain.Repository
	Audit    auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Guard struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	guard    *config.GuardConfigHolder
	saleRepo saledomain.Repository
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) *Guard {
	return &Guard{
		db:       p.DB,
		log:      p.Log.Named("fraud.guard"),
		clock:    p.Clock,
		guard:    p.Guard,
		saleRepo: p.SaleRepo,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

// SelfReferral reports whether the buyer is the affiliate themselves,
// by account ID or by email. Empty buyer fields never match.
func SelfReferral(affiliate *affiliatedomain.Affiliate, candidate requestctx.Candidate) bool {
	if affiliate == nil {
		return false
	}
	if candidate.BuyerID != "" && candidate.BuyerID == affiliate.ID.String() {
		return true
	}
	if candidate.BuyerEmail != "" && strings.EqualFold(candidate.BuyerEmail, affiliate.Email) {
		return true
	}
	return false
}

// CheckVelocity flags the sale when the buyer IP or the credited
// affiliate has crossed its per-window sale count. Flags go to the
// audit log and metrics; the return value exists for callers that want
// to surface the flag, not act on it.
func (g *Guard) CheckVelocity(ctx context.Context, ip string, affiliateID *snowflake.ID) []string {
	cfg := g.guard.Get()
	since := g.clock.Now().Add(-cfg.VelocityWindow())

	var flags []string
	if ip != "" {
		count, err := g.saleRepo.CountByIPSince(ctx, g.db, ip, since)
		if err != nil {
			g.log.Warn("velocity count by ip failed", zap.Error(err))
		} else if count > int64(cfg.MaxSalesPerIP) {
			flags = append(flags, FlagVelocityIP)
			g.metrics.RecordFraudFlag(ctx, FlagVelocityIP)
			g.audit.Log(ctx, auditdomain.ActionVelocityFlagged, "ip", ip, ip, map[string]any{
				"kind":      FlagVelocityIP,
				"count":     count,
				"threshold": cfg.MaxSalesPerIP,
			})
		}
	}
	if affiliateID != nil {
		count, err := g.saleRepo.CountByAffiliateSince(ctx, g.db, *affiliateID, since)
		if err != nil {
			g.log.Warn("velocity count by affiliate failed", zap.Error(err))
		} else if count > int64(cfg.MaxSalesPerAffiliate) {
			flags = append(flags, FlagVelocityAffiliate)
			g.metrics.RecordFraudFlag(ctx, FlagVelocityAffiliate)
			g.audit.Log(ctx, auditdomain.ActionVelocityFlagged, "affiliate", affiliateID.String(), ip, map[string]any{
				"kind":      FlagVelocityAffiliate,
				"count":     count,
				"threshold": cfg.MaxSalesPerAffiliate,
			})
		}
	}
	return flags
}

var Module = fx.Module("fraud",
	fx.Provide(New),
)
