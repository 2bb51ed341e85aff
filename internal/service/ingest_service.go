package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/kafka"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/observability/metrics"
	"gw-settlement-guard/internal/storage/postgres"
)

// Ingest — прием платежных инструкций. Валидация, контроль версий,
// инкремент экспозиции и уведомление о пробитии лимита.
type Ingest interface {
	IngestSettlement(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error)
}

type IngestService struct {
	settlementRepo postgres.SettlementRepository
	exposure       Exposure
	limits         Limits
	txManager      TxManager
	kafkaProducer  kafka.Producer
	log            *slog.Logger

	eventQueue chan models.ExposureBreachEvent
	wg         sync.WaitGroup
	stopCh     chan struct{}
}

func NewIngestService(
	settlementRepo postgres.SettlementRepository,
	exposure Exposure,
	limits Limits,
	txManager TxManager,
	kafkaProducer kafka.Producer,
	log *slog.Logger,
) *IngestService {
	svc := &IngestService{
		settlementRepo: settlementRepo,
		exposure:       exposure,
		limits:         limits,
		txManager:      txManager,
		kafkaProducer:  kafkaProducer,
		log:            log,
		eventQueue:     make(chan models.ExposureBreachEvent, 100),
		stopCh:         make(chan struct{}),
	}

	for i := 0; i < 5; i++ {
		svc.wg.Add(1)
		go svc.kafkaWorker(i)
	}

	return svc
}

func (s *IngestService) kafkaWorker(id int) {
	defer s.wg.Done()
	s.log.Info("kafka worker started", slog.Int("worker_id", id))

	for {
		select {
		case event := <-s.eventQueue:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.kafkaProducer.SendExposureBreachEvent(ctx, event); err != nil {
				s.log.Error("kafka send failed",
					slog.Int("worker_id", id),
					slog.String("settlement_id", event.SettlementID),
					slog.String("error", err.Error()))
			} else {
				s.log.Info("event sent to kafka",
					slog.Int("worker_id", id),
					slog.String("settlement_id", event.SettlementID))
			}
			cancel()

		case <-s.stopCh:
			s.log.Info("kafka worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (s *IngestService) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down ingest service")

	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all kafka workers stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown timeout exceeded")
		return ctx.Err()
	}
}

// IngestSettlement принимает инструкцию. Версия должна быть строго больше
// сохраненной, иначе ErrStaleVersion. Инструкция вне скоупа (не VERIFIED)
// сохраняется, но итог группы не меняет.
func (s *IngestService) IngestSettlement(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error) {
	const op = "service.IngestSettlement"

	valueDate, err := validateIngestRequest(req)
	if err != nil {
		metrics.SettlementsRejected.Inc()
		return nil, err
	}

	stl := &models.Settlement{
		SettlementID:      req.SettlementID,
		SettlementVersion: req.SettlementVersion,
		PTS:               req.PTS,
		ProcessingEntity:  req.ProcessingEntity,
		CounterpartyID:    req.CounterpartyID,
		ValueDate:         valueDate,
		Currency:          req.Currency,
		Amount:            req.Amount,
		Direction:         req.Direction,
		SettlementType:    req.SettlementType,
		BusinessStatus:    req.BusinessStatus,
	}

	var (
		included  bool
		prevTotal = decimal.Zero
		newTotal  = decimal.Zero
	)

	err = s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		// Для нового settlement_id таблица пуста и FOR UPDATE ничего не
		// блокирует: первые поставки сериализуются advisory-локом.
		if err := s.settlementRepo.AcquireIngestLockTx(ctx, tx, req.SettlementID); err != nil {
			return fmt.Errorf("failed to lock settlement id: %w", err)
		}

		latest, err := s.settlementRepo.GetLatestVersionForUpdateTx(ctx, tx, req.SettlementID)
		if err != nil && !errors.Is(err, custom_err.ErrNotFound) {
			return fmt.Errorf("failed to check stored version: %w", err)
		}
		if err == nil && req.SettlementVersion <= latest {
			return custom_err.ErrStaleVersion
		}

		if err := s.settlementRepo.InsertTx(ctx, tx, stl); err != nil {
			return err
		}

		if err := s.settlementRepo.MarkOldVersionsTx(ctx, tx, req.SettlementID, req.SettlementVersion); err != nil {
			return fmt.Errorf("failed to supersede old versions: %w", err)
		}

		if !stl.InScope() {
			return nil
		}

		result, err := s.exposure.ApplyIncrementTx(ctx, tx, stl)
		if err != nil {
			return err
		}
		included = result.Applied
		prevTotal = result.PreviousTotal
		newTotal = result.NewTotal
		return nil
	})

	if err != nil {
		metrics.SettlementsRejected.Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !stl.InScope() {
		// Статус считается по итогу на момент этой записи; саму запись
		// сумма не включает, она вне скоупа.
		total, err := s.exposure.TotalAsOfSeq(ctx, stl.Group(), stl.SeqID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		newTotal = total
	}

	limit, err := s.limits.LimitFor(ctx, stl.Group())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := DeriveStatus(newTotal, limit, nil)

	metrics.SettlementsIngested.Inc()
	s.log.Info("инструкция принята",
		slog.String("op", op),
		slog.String("settlement_id", stl.SettlementID),
		slog.Int64("version", stl.SettlementVersion),
		slog.String("group", stl.Group().String()),
		slog.Bool("included", included),
		slog.String("status", string(status)))

	if included && prevTotal.LessThanOrEqual(limit) && newTotal.GreaterThan(limit) {
		metrics.LimitBreaches.Inc()

		event := models.ExposureBreachEvent{
			SettlementID:      stl.SettlementID,
			SettlementVersion: stl.SettlementVersion,
			PTS:               stl.PTS,
			ProcessingEntity:  stl.ProcessingEntity,
			CounterpartyID:    stl.CounterpartyID,
			ValueDate:         stl.ValueDate,
			TotalUSD:          newTotal,
			LimitUSD:          limit,
			Timestamp:         time.Now(),
		}

		select {
		case s.eventQueue <- event:
			s.log.Debug("событие о пробитии лимита добавлено в очередь",
				slog.String("settlement_id", stl.SettlementID))
		default:
			s.log.Error("очередь событий переполнена, событие отброшено",
				slog.String("settlement_id", stl.SettlementID),
				slog.String("total_usd", newTotal.String()))
		}
	}

	return &models.IngestResponse{
		Message:           "Settlement accepted",
		SettlementID:      stl.SettlementID,
		SettlementVersion: stl.SettlementVersion,
		CurrentStatus:     status,
		GroupTotalUSD:     newTotal,
		IncludedInTotal:   included,
	}, nil
}

func validateIngestRequest(req models.IngestRequest) (time.Time, error) {
	vErr := &custom_err.ValidationError{}

	if req.SettlementID == "" {
		vErr.Add("settlement_id", "is required")
	}
	if req.SettlementVersion < 1 {
		vErr.Add("settlement_version", "must be a positive integer")
	}
	if req.PTS == "" {
		vErr.Add("pts", "is required")
	}
	if req.ProcessingEntity == "" {
		vErr.Add("processing_entity", "is required")
	}
	if req.CounterpartyID == "" {
		vErr.Add("counterparty_id", "is required")
	}
	if len(req.Currency) != 3 || req.Currency != strings.ToUpper(req.Currency) {
		vErr.Add("currency", "must be a 3-letter ISO 4217 code")
	}
	if req.Amount.IsNegative() {
		vErr.Add("amount", "must not be negative")
	}
	if !req.Direction.IsValid() {
		vErr.Add("direction", "must be PAY or RECEIVE")
	}
	if !req.SettlementType.IsValid() {
		vErr.Add("settlement_type", "must be GROSS or NET")
	}
	if !req.BusinessStatus.IsValid() {
		vErr.Add("business_status", "must be PENDING, VERIFIED, INVALID or CANCELLED")
	}

	valueDate, err := time.Parse(models.DateLayout, req.ValueDate)
	if err != nil {
		vErr.Add("value_date", "must be a date in format "+models.DateLayout)
	}

	if vErr.HasViolations() {
		return time.Time{}, vErr
	}
	return valueDate, nil
}
