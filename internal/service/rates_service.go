package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/observability/metrics"
	"gw-settlement-guard/internal/ratesource"
	"gw-settlement-guard/internal/storage/postgres"
)

type CachedRate struct {
	Rate      decimal.Decimal
	Timestamp time.Time
}

// Rates — нормализатор валют: перевод сумм в USD и контроль свежести курсов.
type Rates interface {
	ToUSD(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
	AreRatesStale(ctx context.Context) (bool, error)
	GetRates(ctx context.Context) (*models.ExchangeRatesResponse, error)
	RefreshRates(ctx context.Context) error
}

type RatesService struct {
	rateRepo postgres.RateRepository
	source   ratesource.Client

	cache      map[string]CachedRate
	cacheMutex sync.RWMutex

	cacheExpiration    time.Duration
	stalenessThreshold time.Duration
	log                *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

func NewRatesService(
	rateRepo postgres.RateRepository,
	source ratesource.Client,
	cacheExpiration time.Duration,
	stalenessThreshold time.Duration,
	refreshInterval time.Duration,
	log *slog.Logger,
) *RatesService {
	svc := &RatesService{
		rateRepo:           rateRepo,
		source:             source,
		cache:              make(map[string]CachedRate),
		cacheExpiration:    cacheExpiration,
		stalenessThreshold: stalenessThreshold,
		log:                log,
		stopCh:             make(chan struct{}),
	}

	if refreshInterval > 0 {
		svc.wg.Add(1)
		go svc.refreshWorker(refreshInterval)
	}

	return svc
}

func (s *RatesService) refreshWorker(interval time.Duration) {
	defer s.wg.Done()
	s.log.Info("фоновое обновление курсов запущено", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.RefreshRates(ctx); err != nil {
				s.log.Error("не удалось обновить курсы", slog.String("error", err.Error()))
			}
			cancel()

		case <-s.stopCh:
			s.log.Info("фоновое обновление курсов остановлено")
			return
		}
	}
}

func (s *RatesService) Shutdown(ctx context.Context) error {
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToUSD конвертирует сумму в валюту отчетности. Отсутствующий курс —
// это отказ (ErrRateNotFound), никогда не подстановка 1 или 0.
func (s *RatesService) ToUSD(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	const op = "service.ToUSD"

	if currency == models.ReportingCurrency {
		return amount, nil
	}

	rate, err := s.getRate(ctx, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return amount.Mul(rate), nil
}

func (s *RatesService) getRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	s.cacheMutex.RLock()
	if cached, ok := s.cache[currency]; ok {
		if time.Since(cached.Timestamp) < s.cacheExpiration {
			rate := cached.Rate
			s.cacheMutex.RUnlock()
			return rate, nil
		}
	}
	s.cacheMutex.RUnlock()

	stored, err := s.rateRepo.GetByCurrency(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}

	s.cacheMutex.Lock()
	s.cache[currency] = CachedRate{
		Rate:      stored.RateToUSD,
		Timestamp: time.Now(),
	}
	s.cacheMutex.Unlock()

	return stored.RateToUSD, nil
}

// AreRatesStale — true, если самый старый курс старше порога
// или курсов нет вовсе.
func (s *RatesService) AreRatesStale(ctx context.Context) (bool, error) {
	const op = "service.AreRatesStale"

	oldest, err := s.rateRepo.OldestUpdate(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if oldest == nil {
		return true, nil
	}
	return time.Since(*oldest) > s.stalenessThreshold, nil
}

func (s *RatesService) GetRates(ctx context.Context) (*models.ExchangeRatesResponse, error) {
	const op = "service.GetRates"

	stored, err := s.rateRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stale, err := s.AreRatesStale(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rates := make(map[string]decimal.Decimal, len(stored))
	for _, r := range stored {
		rates[r.Currency] = r.RateToUSD
	}

	return &models.ExchangeRatesResponse{Rates: rates, Stale: stale}, nil
}

// RefreshRates забирает актуальные курсы у внешнего источника
// и сохраняет их, затем сбрасывает кэш.
func (s *RatesService) RefreshRates(ctx context.Context) error {
	const op = "service.RefreshRates"

	fetched, err := s.source.FetchCurrentRates(ctx)
	if err != nil {
		metrics.RateRefreshErrors.Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	for currency, rate := range fetched {
		if currency == models.ReportingCurrency {
			continue
		}
		if rate.IsZero() || rate.IsNegative() {
			s.log.Warn("источник вернул некорректный курс, пропускаем",
				slog.String("currency", currency),
				slog.String("rate", rate.String()))
			continue
		}
		if err := s.rateRepo.Upsert(ctx, currency, rate); err != nil {
			metrics.RateRefreshErrors.Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.cacheMutex.Lock()
	s.cache = make(map[string]CachedRate)
	s.cacheMutex.Unlock()

	s.log.Info("курсы валют обновлены", slog.Int("count", len(fetched)))
	return nil
}
