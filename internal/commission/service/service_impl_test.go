package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	auditrepo "github.com/flasti/ledger/internal/audit/repository"
	auditservice "github.com/flasti/ledger/internal/audit/service"
	"github.com/flasti/ledger/internal/commission/domain"
	commissionrepo "github.com/flasti/ledger/internal/commission/repository"
	"github.com/flasti/ledger/internal/config"
)

func setupCommissionService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Rate{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Guard: config.NewStaticGuardConfigHolder(config.DefaultGuardConfig()),
		Repo:  commissionrepo.Provide(),
		Audit: auditSvc,
	})
	return svc, db
}

func TestQuoteRateFallbackLadder(t *testing.T) {
	svc, db := setupCommissionService(t)
	ctx := context.Background()

	_, err := svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 1, RateBps: 5000})
	require.NoError(t, err)
	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 1, ProductID: "app-1", RateBps: 4000})
	require.NoError(t, err)

	// Product-specific rate wins.
	quote, err := svc.QuoteRate(ctx, 1, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), quote.RateBps)
	assert.Equal(t, domain.SourceProductLevel, quote.Source)

	// Unknown product falls back to the level default.
	quote, err = svc.QuoteRate(ctx, 1, "app-other")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.RateBps)
	assert.Equal(t, domain.SourceLevel, quote.Source)

	// Unknown level falls back to the global default; the quote is never
	// an error.
	quote, err = svc.QuoteRate(ctx, 9, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.RateBps)
	assert.Equal(t, domain.SourceGlobal, quote.Source)

	// Both fallbacks above leave an audit trail.
	var audits []auditdomain.AuditLog
	require.NoError(t, db.Where("action = ?", auditdomain.ActionRateFallback).Find(&audits).Error)
	require.Len(t, audits, 2)
	sources := map[string]bool{}
	for _, entry := range audits {
		sources[entry.Metadata["source"].(string)] = true
	}
	assert.True(t, sources[string(domain.SourceLevel)])
	assert.True(t, sources[string(domain.SourceGlobal)])
}

func TestQuoteRateInvalidLevel(t *testing.T) {
	svc, _ := setupCommissionService(t)
	_, err := svc.QuoteRate(context.Background(), 0, "app")
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}

func TestUpsertRateReplacesExisting(t *testing.T) {
	svc, db := setupCommissionService(t)
	ctx := context.Background()

	_, err := svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 2, RateBps: 6000})
	require.NoError(t, err)
	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 2, RateBps: 6500})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.Rate{}).Where("level = ?", 2).Count(&count).Error)
	assert.Equal(t, int64(1), count, "upsert must replace, not insert")

	quote, err := svc.QuoteRate(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(6500), quote.RateBps)
}

func TestUpsertRateValidation(t *testing.T) {
	svc, _ := setupCommissionService(t)
	ctx := context.Background()

	_, err := svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 0, RateBps: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 1, RateBps: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{Level: 1, RateBps: 10001})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}
