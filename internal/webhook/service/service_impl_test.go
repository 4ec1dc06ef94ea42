package service

import (
	"context"
	"fmt"
	"sync"
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
	attributionservice "github.com/flasti/ledger/internal/attribution/service"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	auditrepo "github.com/flasti/ledger/internal/audit/repository"
	auditservice "github.com/flasti/ledger/internal/audit/service"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	balancerepo "github.com/flasti/ledger/internal/balance/repository"
	"github.com/flasti/ledger/internal/clock"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	commissionrepo "github.com/flasti/ledger/internal/commission/repository"
	commissionservice "github.com/flasti/ledger/internal/commission/service"
	"github.com/flasti/ledger/internal/config"
	eventsdomain "github.com/flasti/ledger/internal/events/domain"
	eventsrepo "github.com/flasti/ledger/internal/events/repository"
	eventsservice "github.com/flasti/ledger/internal/events/service"
	"github.com/flasti/ledger/internal/fraud"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
	salerepo "github.com/flasti/ledger/internal/sale/repository"
	saleservice "github.com/flasti/ledger/internal/sale/service"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
	visitrepo "github.com/flasti/ledger/internal/visit/repository"
	"github.com/flasti/ledger/internal/webhook/domain"
)

type webhookFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func setupWebhookService(t *testing.T) *webhookFixture {
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
		&saledomain.Sale{},
		&balancedomain.Account{},
		&balancedomain.Entry{},
		&commissiondomain.Rate{},
		&auditdomain.AuditLog{},
		&eventsdomain.OutboxEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	guard := config.NewStaticGuardConfigHolder(config.DefaultGuardConfig())

	for level, bps := range map[int]int64{1: 5000, 2: 6000, 3: 7000} {
		rate := commissiondomain.Rate{ID: node.Generate(), Level: level, RateBps: bps}
		require.NoError(t, db.Create(&rate).Error)
	}

	affiliateRepo := affiliaterepo.Provide()
	saleRepo := salerepo.Provide()

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
	commissionSvc := commissionservice.New(commissionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Guard: guard,
		Repo:  commissionrepo.Provide(),
		Audit: auditSvc,
	})
	publisher := eventsservice.New(eventsservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  eventsrepo.Provide(),
	})
	resolver := attributionservice.New(attributionservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		Clock:         fake,
		Guard:         guard,
		AffiliateRepo: affiliateRepo,
		VisitRepo:     visitrepo.Provide(),
		Audit:         auditSvc,
	})
	saleSvc := saleservice.New(saleservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fake,
		Guard:         guard,
		Repo:          saleRepo,
		BalanceRepo:   balancerepo.Provide(),
		AffiliateRepo: affiliateRepo,
		Commission:    commissionSvc,
		Publisher:     publisher,
		Audit:         auditSvc,
	})
	guardSvc := fraud.New(fraud.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    fake,
		Guard:    guard,
		SaleRepo: saleRepo,
		Audit:    auditSvc,
	})

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		AffiliateRepo: affiliateRepo,
		Resolver:      resolver,
		Sales:         saleSvc,
		Fraud:         guardSvc,
	})

	return &webhookFixture{db: db, node: node, clock: fake, svc: svc}
}

func (f *webhookFixture) seedAffiliate(t *testing.T) *affiliatedomain.Affiliate {
	t.Helper()
	affiliate := &affiliatedomain.Affiliate{
		ID:     f.node.Generate(),
		Code:   fmt.Sprintf("code%d", f.node.Generate()),
		Name:   "Affiliate One",
		Email:  fmt.Sprintf("aff%d@example.com", f.node.Generate()),
		Level:  1,
		Status: affiliatedomain.StatusActive,
	}
	require.NoError(t, f.db.Create(affiliate).Error)
	return affiliate
}

func (f *webhookFixture) seedVisit(t *testing.T, affiliateID snowflake.ID, ip string, at time.Time) {
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

// A provider retries and delivers the same transaction twice in
// parallel. The buyer clicked an affiliate link from 1.2.3.4 two days
// earlier, so the sale is attributed by IP, exactly once.
func TestProcessParallelDuplicate(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)
	f.seedVisit(t, aff.ID, "1.2.3.4", f.clock.Now().Add(-2*24*time.Hour))

	body := []byte(`{"transaction_id":"TX1","product_id":"app-1","gross_amount":"100.00","buyer_ip":"1.2.3.4"}`)

	var wg sync.WaitGroup
	results := make(chan *domain.Result, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Process(context.Background(), "testpay", body)
			results <- result
			errs <- err
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	recorded, duplicate := 0, 0
	for result := range results {
		switch result.Outcome {
		case domain.OutcomeRecorded:
			recorded++
		case domain.OutcomeDuplicate:
			duplicate++
		}
		require.NotNil(t, result.Sale)
		require.NotNil(t, result.Sale.AffiliateID, "sale not attributed")
		assert.Equal(t, aff.ID, *result.Sale.AffiliateID)
	}
	assert.Equal(t, 1, recorded)
	assert.Equal(t, 1, duplicate)

	var sales int64
	require.NoError(t, f.db.Model(&saledomain.Sale{}).Count(&sales).Error)
	assert.Equal(t, int64(1), sales, "expected 1 sale")

	var account balancedomain.Account
	require.NoError(t, f.db.Where("affiliate_id = ?", aff.ID).First(&account).Error)
	assert.Equal(t, int64(5000), account.CurrentCents, "one 50%% credit on $100")
}

func TestProcessAttributionSourceIP(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)
	f.seedVisit(t, aff.ID, "1.2.3.4", f.clock.Now().Add(-time.Hour))

	body := []byte(`{"transaction_id":"TX1","product_id":"app-1","gross_amount":"10","buyer_ip":"1.2.3.4"}`)
	result, err := f.svc.Process(context.Background(), "testpay", body)
	require.NoError(t, err)
	assert.Equal(t, "ip", result.Sale.AttributionSource)
}

func TestProcessProviderAssertedAffiliate(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)

	body := []byte(fmt.Sprintf(`{"transaction_id":"TX1","product_id":"app-1","gross_amount":"10","affiliate_id":"%s"}`, aff.ID))
	result, err := f.svc.Process(context.Background(), "testpay", body)
	require.NoError(t, err)
	require.NotNil(t, result.Sale.AffiliateID, "provider-asserted affiliate not honored")
	assert.Equal(t, aff.ID, *result.Sale.AffiliateID)
	assert.Equal(t, "provider", result.Sale.AttributionSource)
}

func TestProcessSelfReferralRecordsUnattributed(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)
	f.seedVisit(t, aff.ID, "1.2.3.4", f.clock.Now().Add(-time.Hour))

	body := []byte(fmt.Sprintf(`{"transaction_id":"TX1","product_id":"app-1","gross_amount":"10","buyer_ip":"1.2.3.4","buyer_email":%q}`, aff.Email))
	result, err := f.svc.Process(context.Background(), "testpay", body)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRecorded, result.Outcome, "self-referral must still record the sale")
	assert.Nil(t, result.Sale.AffiliateID, "self-referral earned attribution")
	assert.Zero(t, result.Sale.CommissionCents, "self-referral earned commission")
}

func TestProcessMalformedPayload(t *testing.T) {
	f := setupWebhookService(t)

	cases := []struct {
		body string
		want error
	}{
		{`not json`, domain.ErrMalformedPayload},
		{`{"product_id":"app","gross_amount":"10"}`, domain.ErrMissingTransactionID},
		{`{"transaction_id":"TX1","gross_amount":"10"}`, domain.ErrMissingProductID},
		{`{"transaction_id":"TX1","product_id":"app","gross_amount":"-3"}`, domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		_, err := f.svc.Process(context.Background(), "testpay", []byte(tc.body))
		assert.ErrorIs(t, err, tc.want, "Process(%q)", tc.body)
	}
}

func TestProcessRefundFlow(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)
	f.seedVisit(t, aff.ID, "1.2.3.4", f.clock.Now().Add(-time.Hour))

	sale := []byte(`{"transaction_id":"TX1","product_id":"app-1","gross_amount":"100","buyer_ip":"1.2.3.4"}`)
	_, err := f.svc.Process(context.Background(), "testpay", sale)
	require.NoError(t, err)

	refund := []byte(`{"type":"refund","transaction_id":"TX1"}`)
	result, err := f.svc.Process(context.Background(), "testpay", refund)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRefunded, result.Outcome)

	// A retried refund is acknowledged as a duplicate, not an error.
	result, err = f.svc.Process(context.Background(), "testpay", refund)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, result.Outcome)

	var account balancedomain.Account
	require.NoError(t, f.db.Where("affiliate_id = ?", aff.ID).First(&account).Error)
	assert.Zero(t, account.CurrentCents, "refund did not reverse the credit")
}

func TestProcessVelocityFlags(t *testing.T) {
	f := setupWebhookService(t)
	aff := f.seedAffiliate(t)
	f.seedVisit(t, aff.ID, "1.2.3.4", f.clock.Now().Add(-time.Hour))

	// Default threshold: more than 5 sales per IP per window.
	var flagged []string
	for i := 0; i < 7; i++ {
		body := []byte(fmt.Sprintf(`{"transaction_id":"TX%d","product_id":"app-1","gross_amount":"10","buyer_ip":"1.2.3.4"}`, i))
		result, err := f.svc.Process(context.Background(), "testpay", body)
		require.NoError(t, err, "process %d", i)
		require.Equal(t, domain.OutcomeRecorded, result.Outcome, "sale %d not recorded", i)
		flagged = append(flagged, result.Flags...)
	}
	assert.NotEmpty(t, flagged, "expected velocity flags after crossing the per-IP threshold")

	var audits int64
	err := f.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionVelocityFlagged).
		Count(&audits).Error
	require.NoError(t, err)
	assert.NotZero(t, audits, "velocity flags must be audited")
}
