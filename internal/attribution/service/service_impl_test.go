package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	affiliaterepo "github.com/flasti/ledger/internal/affiliate/repository"
	attributiondomain "github.com/flasti/ledger/internal/attribution/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	auditrepo "github.com/flasti/ledger/internal/audit/repository"
	auditservice "github.com/flasti/ledger/internal/audit/service"
	"github.com/flasti/ledger/internal/clock"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/requestctx"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
	visitrepo "github.com/flasti/ledger/internal/visit/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	err = db.AutoMigrate(
		&affiliatedomain.Affiliate{},
		&visitdomain.Visit{},
		&auditdomain.AuditLog{},
	)
	require.NoError(t, err)
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

type resolverFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	resolver attributiondomain.Service
}

func setupResolver(t *testing.T) *resolverFixture {
	t.Helper()

	db := openTestDB(t)
	node := mustNode(t)
	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	guard := config.NewStaticGuardConfigHolder(config.DefaultGuardConfig())

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	resolver := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		Clock:         fake,
		Guard:         guard,
		AffiliateRepo: affiliaterepo.Provide(),
		VisitRepo:     visitrepo.Provide(),
		Audit:         auditSvc,
	})

	return &resolverFixture{db: db, node: node, clock: fake, resolver: resolver}
}

func (f *resolverFixture) seedAffiliate(t *testing.T, email string, status affiliatedomain.Status) *affiliatedomain.Affiliate {
	t.Helper()
	affiliate := &affiliatedomain.Affiliate{
		ID:     f.node.Generate(),
		Code:   fmt.Sprintf("code%d", f.node.Generate()),
		Name:   "Test Affiliate",
		Email:  email,
		Level:  1,
		Status: status,
	}
	require.NoError(t, f.db.Create(affiliate).Error)
	return affiliate
}

func (f *resolverFixture) seedVisit(t *testing.T, affiliateID snowflake.ID, ip string, at time.Time) {
	t.Helper()
	visit := &visitdomain.Visit{
		ID:          f.node.Generate(),
		AffiliateID: affiliateID,
		ProductID:   "app-1",
		IPAddress:   ip,
		OccurredAt:  at,
	}
	require.NoError(t, f.db.Create(visit).Error)
}

func TestResolveTokenWinsOverIP(t *testing.T) {
	f := setupResolver(t)
	tokenAff := f.seedAffiliate(t, "token@example.com", affiliatedomain.StatusActive)
	ipAff := f.seedAffiliate(t, "ip@example.com", affiliatedomain.StatusActive)
	f.seedVisit(t, ipAff.ID, "1.2.3.4", f.clock.Now().Add(-time.Hour))

	token := attributiondomain.EncodeToken(tokenAff.ID, "app-1", f.clock.Now().Add(-time.Hour))
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{
		AttributionToken: token,
		BuyerIP:          "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, got, "expected attribution")
	assert.Equal(t, tokenAff.ID, got.AffiliateID)
	assert.Equal(t, attributiondomain.SourceToken, got.Source)
}

func TestResolveExpiredTokenFallsBackToIP(t *testing.T) {
	f := setupResolver(t)
	tokenAff := f.seedAffiliate(t, "token@example.com", affiliatedomain.StatusActive)
	ipAff := f.seedAffiliate(t, "ip@example.com", affiliatedomain.StatusActive)
	f.seedVisit(t, ipAff.ID, "1.2.3.4", f.clock.Now().Add(-2*24*time.Hour))

	expired := attributiondomain.EncodeToken(tokenAff.ID, "app-1", f.clock.Now().Add(-8*24*time.Hour))
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{
		AttributionToken: expired,
		BuyerIP:          "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, got, "expected IP fallback attribution")
	assert.Equal(t, ipAff.ID, got.AffiliateID)
	assert.Equal(t, attributiondomain.SourceIP, got.Source)
}

func TestResolveWindowBoundary(t *testing.T) {
	f := setupResolver(t)
	aff := f.seedAffiliate(t, "aff@example.com", affiliatedomain.StatusActive)

	window := 7 * 24 * time.Hour

	// One second outside the window: no attribution.
	f.seedVisit(t, aff.ID, "9.9.9.9", f.clock.Now().Add(-window-time.Second))
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{BuyerIP: "9.9.9.9"})
	require.NoError(t, err)
	assert.Nil(t, got, "visit outside the window must not attribute")

	// Six days old: attributed.
	f.seedVisit(t, aff.ID, "8.8.8.8", f.clock.Now().Add(-6*24*time.Hour))
	got, err = f.resolver.Resolve(context.Background(), requestctx.Candidate{BuyerIP: "8.8.8.8"})
	require.NoError(t, err)
	require.NotNil(t, got, "visit inside the window must attribute")
	assert.Equal(t, aff.ID, got.AffiliateID)
}

func TestResolveLastTouchWins(t *testing.T) {
	f := setupResolver(t)
	older := f.seedAffiliate(t, "older@example.com", affiliatedomain.StatusActive)
	newer := f.seedAffiliate(t, "newer@example.com", affiliatedomain.StatusActive)
	f.seedVisit(t, older.ID, "1.2.3.4", f.clock.Now().Add(-3*24*time.Hour))
	f.seedVisit(t, newer.ID, "1.2.3.4", f.clock.Now().Add(-1*24*time.Hour))

	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{BuyerIP: "1.2.3.4"})
	require.NoError(t, err)
	require.NotNil(t, got, "most recent visit must win")
	assert.Equal(t, newer.ID, got.AffiliateID)
}

func TestResolveSelfReferralBlocked(t *testing.T) {
	f := setupResolver(t)
	aff := f.seedAffiliate(t, "self@example.com", affiliatedomain.StatusActive)

	token := attributiondomain.EncodeToken(aff.ID, "app-1", f.clock.Now())
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{
		AttributionToken: token,
		BuyerEmail:       "Self@Example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, got, "self-referral must block attribution")

	var count int64
	err = f.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionSelfReferralBlocked).
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expected 1 self-referral audit entry")
}

func TestResolveInactiveAffiliate(t *testing.T) {
	f := setupResolver(t)
	aff := f.seedAffiliate(t, "gone@example.com", affiliatedomain.StatusInactive)

	token := attributiondomain.EncodeToken(aff.ID, "app-1", f.clock.Now())
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{AttributionToken: token})
	require.NoError(t, err)
	assert.Nil(t, got, "inactive affiliate must not attribute")
}

func TestResolveNothing(t *testing.T) {
	f := setupResolver(t)
	got, err := f.resolver.Resolve(context.Background(), requestctx.Candidate{
		AttributionToken: "garbage",
		BuyerIP:          "5.5.5.5",
	})
	require.NoError(t, err)
	assert.Nil(t, got, "no token, no visit: want nil")
}
