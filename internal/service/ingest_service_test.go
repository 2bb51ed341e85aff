package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
)

// Сервис собирается без kafka-воркеров: события проверяются прямо в очереди.
func setupIngestService() (*IngestService, *MockSettlementRepo, *MockExposure, *MockLimits, *MockTxManager) {
	settlementRepo := new(MockSettlementRepo)
	exposure := new(MockExposure)
	limits := new(MockLimits)
	txManager := new(MockTxManager)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	service := &IngestService{
		settlementRepo: settlementRepo,
		exposure:       exposure,
		limits:         limits,
		txManager:      txManager,
		kafkaProducer:  new(MockKafkaProducer),
		log:            log,
		eventQueue:     make(chan models.ExposureBreachEvent, 10),
		stopCh:         make(chan struct{}),
	}

	return service, settlementRepo, exposure, limits, txManager
}

func testIngestRequest() models.IngestRequest {
	return models.IngestRequest{
		SettlementID:      "STL-100",
		SettlementVersion: 2,
		PTS:               "CLS",
		ProcessingEntity:  "OPS-LONDON",
		CounterpartyID:    "CP-001",
		ValueDate:         "2026-08-21",
		Currency:          "EUR",
		Amount:            decimal.RequireFromString("100000"),
		Direction:         models.DirectionPay,
		SettlementType:    models.SettlementGross,
		BusinessStatus:    models.BusinessVerified,
	}
}

func TestIngestService_Validation_CollectsAllViolations(t *testing.T) {
	service, settlementRepo, _, _, _ := setupIngestService()
	ctx := context.Background()

	resp, err := service.IngestSettlement(ctx, models.IngestRequest{})

	assert.ErrorIs(t, err, custom_err.ErrInvalidInput)
	assert.Nil(t, resp)

	var vErr *custom_err.ValidationError
	assert.ErrorAs(t, err, &vErr)
	// Пустой запрос нарушает все обязательные поля разом.
	assert.GreaterOrEqual(t, len(vErr.Violations), 9)

	settlementRepo.AssertNotCalled(t, "InsertTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Validation_BadEnumAndDate(t *testing.T) {
	service, _, _, _, _ := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.Direction = "SIDEWAYS"
	req.ValueDate = "21/08/2026"
	req.Amount = decimal.RequireFromString("-5")

	resp, err := service.IngestSettlement(ctx, req)

	assert.Nil(t, resp)

	var vErr *custom_err.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violations, 3)
}

func TestIngestService_StaleVersionRejected(t *testing.T) {
	service, settlementRepo, _, _, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.SettlementVersion = 2

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(2), nil)

	resp, err := service.IngestSettlement(ctx, req)

	assert.ErrorIs(t, err, custom_err.ErrStaleVersion)
	assert.Nil(t, resp)
	settlementRepo.AssertNotCalled(t, "InsertTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_FirstVersionAccepted(t *testing.T) {
	service, settlementRepo, exposure, limits, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.SettlementVersion = 1

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(0), custom_err.ErrNotFound)
	settlementRepo.On("InsertTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*models.Settlement).SeqID = 10
		}).Return(nil)
	settlementRepo.On("MarkOldVersionsTx", ctx, nil, "STL-100", int64(1)).Return(nil)
	exposure.On("ApplyIncrementTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Return(&models.IncrementResult{
			Applied:       true,
			PreviousTotal: decimal.Zero,
			NewTotal:      decimal.RequireFromString("108700"),
		}, nil)
	limits.On("LimitFor", ctx, mock.Anything).Return(decimal.RequireFromString("1000000"), nil)

	resp, err := service.IngestSettlement(ctx, req)

	assert.NoError(t, err)
	assert.True(t, resp.IncludedInTotal)
	assert.Equal(t, models.StatusCreated, resp.CurrentStatus)
	assert.True(t, resp.GroupTotalUSD.Equal(decimal.RequireFromString("108700")))
	assert.Len(t, service.eventQueue, 0)

	settlementRepo.AssertExpectations(t)
	exposure.AssertExpectations(t)
}

func TestIngestService_BreachEnqueuesEvent(t *testing.T) {
	service, settlementRepo, exposure, limits, txManager := setupIngestService()
	ctx := context.Background()

	// 600k уже в группе, лимит 1M: инструкция на 500k пробивает лимит.
	req := testIngestRequest()
	req.Currency = "USD"
	req.Amount = decimal.RequireFromString("500000")

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(1), nil)
	settlementRepo.On("InsertTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*models.Settlement).SeqID = 11
		}).Return(nil)
	settlementRepo.On("MarkOldVersionsTx", ctx, nil, "STL-100", int64(2)).Return(nil)
	exposure.On("ApplyIncrementTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Return(&models.IncrementResult{
			Applied:       true,
			PreviousTotal: decimal.RequireFromString("600000"),
			NewTotal:      decimal.RequireFromString("1100000"),
		}, nil)
	limits.On("LimitFor", ctx, mock.Anything).Return(decimal.RequireFromString("1000000"), nil)

	resp, err := service.IngestSettlement(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, resp.CurrentStatus)
	assert.Len(t, service.eventQueue, 1)

	event := <-service.eventQueue
	assert.Equal(t, "STL-100", event.SettlementID)
	assert.True(t, event.TotalUSD.Equal(decimal.RequireFromString("1100000")))
	assert.True(t, event.LimitUSD.Equal(decimal.RequireFromString("1000000")))
}

func TestIngestService_AlreadyOverLimit_NoNewEvent(t *testing.T) {
	service, settlementRepo, exposure, limits, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.SettlementVersion = 3
	req.Currency = "USD"
	req.Amount = decimal.RequireFromString("100")

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(2), nil)
	settlementRepo.On("InsertTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*models.Settlement).SeqID = 12
		}).Return(nil)
	settlementRepo.On("MarkOldVersionsTx", ctx, nil, "STL-100", int64(3)).Return(nil)
	exposure.On("ApplyIncrementTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Return(&models.IncrementResult{
			Applied:       true,
			PreviousTotal: decimal.RequireFromString("1100000"),
			NewTotal:      decimal.RequireFromString("1100100"),
		}, nil)
	limits.On("LimitFor", ctx, mock.Anything).Return(decimal.RequireFromString("1000000"), nil)

	resp, err := service.IngestSettlement(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, resp.CurrentStatus)
	// Лимит был пробит раньше, повторное событие не шлем.
	assert.Len(t, service.eventQueue, 0)
}

func TestIngestService_OutOfScopeStoredButExcluded(t *testing.T) {
	service, settlementRepo, exposure, limits, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.BusinessStatus = models.BusinessCancelled

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(1), nil)
	settlementRepo.On("InsertTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*models.Settlement).SeqID = 13
		}).Return(nil)
	settlementRepo.On("MarkOldVersionsTx", ctx, nil, "STL-100", int64(2)).Return(nil)
	exposure.On("TotalAsOfSeq", ctx, mock.Anything, int64(13)).
		Return(decimal.RequireFromString("600000"), nil)
	limits.On("LimitFor", ctx, mock.Anything).Return(decimal.RequireFromString("1000000"), nil)

	resp, err := service.IngestSettlement(ctx, req)

	assert.NoError(t, err)
	assert.False(t, resp.IncludedInTotal)
	assert.True(t, resp.GroupTotalUSD.Equal(decimal.RequireFromString("600000")))

	exposure.AssertNotCalled(t, "ApplyIncrementTx", mock.Anything, mock.Anything, mock.Anything)
}

// Advisory-лок берется до проверки версии: без него две первые поставки
// нового settlement_id прошли бы проверку одновременно и обе остались бы
// текущими.
func TestIngestService_IngestLockGuardsVersionCheck(t *testing.T) {
	service, settlementRepo, _, _, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(errors.New("lock wait cancelled"))

	resp, err := service.IngestSettlement(ctx, req)

	assert.Error(t, err)
	assert.Nil(t, resp)
	settlementRepo.AssertNotCalled(t, "GetLatestVersionForUpdateTx", mock.Anything, mock.Anything, mock.Anything)
	settlementRepo.AssertNotCalled(t, "InsertTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_RateNotFoundRejects(t *testing.T) {
	service, settlementRepo, exposure, _, txManager := setupIngestService()
	ctx := context.Background()

	req := testIngestRequest()
	req.Currency = "XAU"

	txManager.On("WithTx", ctx, mock.Anything).Return(nil)
	settlementRepo.On("AcquireIngestLockTx", ctx, nil, "STL-100").Return(nil)
	settlementRepo.On("GetLatestVersionForUpdateTx", ctx, nil, "STL-100").Return(int64(1), nil)
	settlementRepo.On("InsertTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).Return(nil)
	settlementRepo.On("MarkOldVersionsTx", ctx, nil, "STL-100", int64(2)).Return(nil)
	exposure.On("ApplyIncrementTx", ctx, nil, mock.AnythingOfType("*models.Settlement")).
		Return(nil, custom_err.ErrRateNotFound)

	resp, err := service.IngestSettlement(ctx, req)

	assert.ErrorIs(t, err, custom_err.ErrRateNotFound)
	assert.Nil(t, resp)
}
