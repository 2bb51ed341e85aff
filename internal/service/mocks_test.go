package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"gw-settlement-guard/internal/models"
)

type MockSettlementRepo struct {
	mock.Mock
}

func (m *MockSettlementRepo) AcquireIngestLockTx(ctx context.Context, tx pgx.Tx, settlementID string) error {
	args := m.Called(ctx, tx, settlementID)
	return args.Error(0)
}

func (m *MockSettlementRepo) GetLatestVersionForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string) (int64, error) {
	args := m.Called(ctx, tx, settlementID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSettlementRepo) InsertTx(ctx context.Context, tx pgx.Tx, s *models.Settlement) error {
	args := m.Called(ctx, tx, s)
	return args.Error(0)
}

func (m *MockSettlementRepo) MarkOldVersionsTx(ctx context.Context, tx pgx.Tx, settlementID string, beforeVersion int64) error {
	args := m.Called(ctx, tx, settlementID, beforeVersion)
	return args.Error(0)
}

func (m *MockSettlementRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) (*models.Settlement, error) {
	args := m.Called(ctx, tx, settlementID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementRepo) ListInScopeByGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error) {
	args := m.Called(ctx, tx, key, maxSeq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScopedAmount), args.Error(1)
}

func (m *MockSettlementRepo) MaxSeqForGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (int64, error) {
	args := m.Called(ctx, tx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSettlementRepo) Get(ctx context.Context, settlementID string, version int64) (*models.Settlement, error) {
	args := m.Called(ctx, settlementID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementRepo) ListInScopeByGroup(ctx context.Context, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error) {
	args := m.Called(ctx, key, maxSeq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScopedAmount), args.Error(1)
}

func (m *MockSettlementRepo) ListGroupsForRecalc(ctx context.Context, pts, processingEntity, counterpartyID string, dateFrom, dateTo time.Time) ([]models.ExposureKey, error) {
	args := m.Called(ctx, pts, processingEntity, counterpartyID, dateFrom, dateTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExposureKey), args.Error(1)
}

type MockExposureRepo struct {
	mock.Mock
}

func (m *MockExposureRepo) EnsureRowTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) error {
	args := m.Called(ctx, tx, key)
	return args.Error(0)
}

func (m *MockExposureRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (decimal.Decimal, int64, error) {
	args := m.Called(ctx, tx, key)
	return args.Get(0).(decimal.Decimal), args.Get(1).(int64), args.Error(2)
}

func (m *MockExposureRepo) UpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, totalUSD decimal.Decimal, lastIncludedSeq int64) error {
	args := m.Called(ctx, tx, key, totalUSD, lastIncludedSeq)
	return args.Error(0)
}

func (m *MockExposureRepo) Get(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExposureTotal), args.Error(1)
}

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) AppendTx(ctx context.Context, tx pgx.Tx, record *models.ActivityRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockActivityRepo) ListForSettlementTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) ([]models.ActivityRecord, error) {
	args := m.Called(ctx, tx, settlementID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityRecord), args.Error(1)
}

func (m *MockActivityRepo) ListForSettlement(ctx context.Context, settlementID string, version int64) ([]models.ActivityRecord, error) {
	args := m.Called(ctx, settlementID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityRecord), args.Error(1)
}

type MockRateRepo struct {
	mock.Mock
}

func (m *MockRateRepo) GetAll(ctx context.Context) ([]models.ExchangeRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExchangeRate), args.Error(1)
}

func (m *MockRateRepo) GetByCurrency(ctx context.Context, currency string) (*models.ExchangeRate, error) {
	args := m.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExchangeRate), args.Error(1)
}

func (m *MockRateRepo) Upsert(ctx context.Context, currency string, rateToUSD decimal.Decimal) error {
	args := m.Called(ctx, currency, rateToUSD)
	return args.Error(0)
}

func (m *MockRateRepo) OldestUpdate(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

type MockLimitRepo struct {
	mock.Mock
}

func (m *MockLimitRepo) GetOverride(ctx context.Context, pts, processingEntity, counterpartyID string) (decimal.Decimal, error) {
	args := m.Called(ctx, pts, processingEntity, counterpartyID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) FetchCurrentRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockRateSource) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) SendExposureBreachEvent(ctx context.Context, event models.ExposureBreachEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockKafkaProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockRates struct {
	mock.Mock
}

func (m *MockRates) ToUSD(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRates) AreRatesStale(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockRates) GetRates(ctx context.Context) (*models.ExchangeRatesResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExchangeRatesResponse), args.Error(1)
}

func (m *MockRates) RefreshRates(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockExposure struct {
	mock.Mock
}

func (m *MockExposure) ApplyIncrementTx(ctx context.Context, tx pgx.Tx, s *models.Settlement) (*models.IncrementResult, error) {
	args := m.Called(ctx, tx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IncrementResult), args.Error(1)
}

func (m *MockExposure) RecalculateGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfMaxSeq int64) (*models.RecalcResult, error) {
	args := m.Called(ctx, tx, key, asOfMaxSeq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecalcResult), args.Error(1)
}

func (m *MockExposure) GetTotal(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExposureTotal), args.Error(1)
}

func (m *MockExposure) TotalAsOfSeqTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error) {
	args := m.Called(ctx, tx, key, asOfSeq)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExposure) TotalAsOfSeq(ctx context.Context, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error) {
	args := m.Called(ctx, key, asOfSeq)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockLimits struct {
	mock.Mock
}

func (m *MockLimits) LimitFor(ctx context.Context, key models.ExposureKey) (decimal.Decimal, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
