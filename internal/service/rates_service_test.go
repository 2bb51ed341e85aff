package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
)

// Сервис собирается без фонового обновления (refreshWorker не стартует).
func setupRatesService() (*RatesService, *MockRateRepo, *MockRateSource) {
	rateRepo := new(MockRateRepo)
	source := new(MockRateSource)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	service := &RatesService{
		rateRepo:           rateRepo,
		source:             source,
		cache:              make(map[string]CachedRate),
		cacheExpiration:    5 * time.Minute,
		stalenessThreshold: 12 * time.Hour,
		log:                log,
		stopCh:             make(chan struct{}),
	}

	return service, rateRepo, source
}

func TestRatesService_ToUSD_ReportingCurrencyPassthrough(t *testing.T) {
	service, rateRepo, _ := setupRatesService()
	ctx := context.Background()

	amount := decimal.RequireFromString("123.45")
	result, err := service.ToUSD(ctx, amount, "USD")

	assert.NoError(t, err)
	assert.True(t, result.Equal(amount))
	rateRepo.AssertNotCalled(t, "GetByCurrency", mock.Anything, mock.Anything)
}

func TestRatesService_ToUSD_ConvertsAndCaches(t *testing.T) {
	service, rateRepo, _ := setupRatesService()
	ctx := context.Background()

	rateRepo.On("GetByCurrency", ctx, "EUR").Return(&models.ExchangeRate{
		Currency:  "EUR",
		RateToUSD: decimal.RequireFromString("1.087"),
	}, nil).Once()

	first, err := service.ToUSD(ctx, decimal.RequireFromString("100000"), "EUR")
	assert.NoError(t, err)
	assert.True(t, first.Equal(decimal.RequireFromString("108700")))

	// Второй вызов обслуживается из кэша.
	second, err := service.ToUSD(ctx, decimal.RequireFromString("200000"), "EUR")
	assert.NoError(t, err)
	assert.True(t, second.Equal(decimal.RequireFromString("217400")))

	rateRepo.AssertExpectations(t)
}

func TestRatesService_ToUSD_RateNotFound(t *testing.T) {
	service, rateRepo, _ := setupRatesService()
	ctx := context.Background()

	rateRepo.On("GetByCurrency", ctx, "XAU").Return(nil, custom_err.ErrRateNotFound)

	result, err := service.ToUSD(ctx, decimal.RequireFromString("100"), "XAU")

	assert.ErrorIs(t, err, custom_err.ErrRateNotFound)
	assert.True(t, result.IsZero())
}

func TestRatesService_AreRatesStale(t *testing.T) {
	fresh := time.Now().Add(-1 * time.Hour)
	old := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name     string
		oldest   *time.Time
		expected bool
	}{
		{name: "no rates at all", oldest: nil, expected: true},
		{name: "fresh rates", oldest: &fresh, expected: false},
		{name: "rates older than threshold", oldest: &old, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, rateRepo, _ := setupRatesService()
			ctx := context.Background()

			rateRepo.On("OldestUpdate", ctx).Return(tt.oldest, nil)

			stale, err := service.AreRatesStale(ctx)

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, stale)
		})
	}
}

func TestRatesService_GetRates(t *testing.T) {
	service, rateRepo, _ := setupRatesService()
	ctx := context.Background()

	old := time.Now().Add(-24 * time.Hour)

	rateRepo.On("GetAll", ctx).Return([]models.ExchangeRate{
		{Currency: "EUR", RateToUSD: decimal.RequireFromString("1.087")},
		{Currency: "GBP", RateToUSD: decimal.RequireFromString("1.27")},
	}, nil)
	rateRepo.On("OldestUpdate", ctx).Return(&old, nil)

	resp, err := service.GetRates(ctx)

	assert.NoError(t, err)
	assert.Len(t, resp.Rates, 2)
	assert.True(t, resp.Rates["EUR"].Equal(decimal.RequireFromString("1.087")))
	assert.True(t, resp.Stale)
}

func TestRatesService_RefreshRates_UpsertsAndFilters(t *testing.T) {
	service, rateRepo, source := setupRatesService()
	ctx := context.Background()

	source.On("FetchCurrentRates", ctx).Return(map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("1.087"),
		"GBP": decimal.RequireFromString("1.27"),
		"USD": decimal.RequireFromString("1"),
		"BAD": decimal.Zero,
	}, nil)

	rateRepo.On("Upsert", ctx, "EUR", decimal.RequireFromString("1.087")).Return(nil)
	rateRepo.On("Upsert", ctx, "GBP", decimal.RequireFromString("1.27")).Return(nil)

	err := service.RefreshRates(ctx)

	assert.NoError(t, err)
	// USD и нулевой курс отфильтрованы.
	rateRepo.AssertNumberOfCalls(t, "Upsert", 2)
	source.AssertExpectations(t)
}

func TestRatesService_RefreshRates_InvalidatesCache(t *testing.T) {
	service, rateRepo, source := setupRatesService()
	ctx := context.Background()

	rateRepo.On("GetByCurrency", ctx, "EUR").Return(&models.ExchangeRate{
		Currency:  "EUR",
		RateToUSD: decimal.RequireFromString("1.087"),
	}, nil).Once()

	_, err := service.ToUSD(ctx, decimal.RequireFromString("100"), "EUR")
	assert.NoError(t, err)

	source.On("FetchCurrentRates", ctx).Return(map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("1.1"),
	}, nil)
	rateRepo.On("Upsert", ctx, "EUR", decimal.RequireFromString("1.1")).Return(nil)

	assert.NoError(t, service.RefreshRates(ctx))

	// Кэш сброшен, конвертация идет в хранилище за новым курсом.
	rateRepo.On("GetByCurrency", ctx, "EUR").Return(&models.ExchangeRate{
		Currency:  "EUR",
		RateToUSD: decimal.RequireFromString("1.1"),
	}, nil).Once()

	result, err := service.ToUSD(ctx, decimal.RequireFromString("100"), "EUR")
	assert.NoError(t, err)
	assert.True(t, result.Equal(decimal.RequireFromString("110")))

	rateRepo.AssertExpectations(t)
}
