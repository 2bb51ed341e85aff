package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage/postgres"
)

// Exposure — агрегатор экспозиции. Единственный владелец нарастающих
// итогов: инкремент на горячем пути приема за O(1) и полный пересчет
// группы для ручной/корректирующей сверки.
type Exposure interface {
	ApplyIncrementTx(ctx context.Context, tx pgx.Tx, s *models.Settlement) (*models.IncrementResult, error)
	RecalculateGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfMaxSeq int64) (*models.RecalcResult, error)
	GetTotal(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error)
	TotalAsOfSeqTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error)
	TotalAsOfSeq(ctx context.Context, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error)
}

type ExposureService struct {
	exposureRepo   postgres.ExposureRepository
	settlementRepo postgres.SettlementRepository
	rates          Rates
	log            *slog.Logger
}

func NewExposureService(
	exposureRepo postgres.ExposureRepository,
	settlementRepo postgres.SettlementRepository,
	rates Rates,
	log *slog.Logger,
) *ExposureService {
	return &ExposureService{
		exposureRepo:   exposureRepo,
		settlementRepo: settlementRepo,
		rates:          rates,
		log:            log,
	}
}

// ApplyIncrementTx добавляет USD-эквивалент расчета к итогу его группы
// внутри транзакции вызывающего. Инкремент идемпотентен: повтор с тем же
// seq_id (seq_id <= водяного знака) ничего не меняет.
func (s *ExposureService) ApplyIncrementTx(ctx context.Context, tx pgx.Tx, stl *models.Settlement) (*models.IncrementResult, error) {
	const op = "service.ApplyIncrement"

	if !stl.InScope() {
		return nil, fmt.Errorf("%s: settlement %s v%d is out of scope", op, stl.SettlementID, stl.SettlementVersion)
	}

	usdAmount, err := s.rates.ToUSD(ctx, stl.Amount, stl.Currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := stl.Group()

	if err := s.exposureRepo.EnsureRowTx(ctx, tx, key); err != nil {
		return nil, fmt.Errorf("%s: failed to ensure exposure row: %w", op, err)
	}

	prevTotal, lastSeq, err := s.exposureRepo.GetForUpdateTx(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to lock exposure row: %w", op, err)
	}

	if stl.SeqID <= lastSeq {
		s.log.Debug("инкремент уже учтен, пропускаем",
			slog.String("settlement_id", stl.SettlementID),
			slog.Int64("seq_id", stl.SeqID),
			slog.Int64("last_included_seq", lastSeq))
		return &models.IncrementResult{
			Applied:       false,
			PreviousTotal: prevTotal,
			NewTotal:      prevTotal,
		}, nil
	}

	newTotal := prevTotal.Add(usdAmount)

	if err := s.exposureRepo.UpdateTx(ctx, tx, key, newTotal, stl.SeqID); err != nil {
		return nil, fmt.Errorf("%s: failed to update exposure: %w", op, err)
	}

	return &models.IncrementResult{
		Applied:       true,
		PreviousTotal: prevTotal,
		NewTotal:      newTotal,
	}, nil
}

// RecalculateGroupTx пересчитывает итог группы с нуля по всем входящим
// в расчет записям с seq_id <= asOfMaxSeq. Единственный путь, которому
// разрешено уменьшать итог.
func (s *ExposureService) RecalculateGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfMaxSeq int64) (*models.RecalcResult, error) {
	const op = "service.RecalculateGroup"

	if err := s.exposureRepo.EnsureRowTx(ctx, tx, key); err != nil {
		return nil, fmt.Errorf("%s: failed to ensure exposure row: %w", op, err)
	}

	prevTotal, lastSeq, err := s.exposureRepo.GetForUpdateTx(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to lock exposure row: %w", op, err)
	}

	// Между снятием asOfMaxSeq и захватом блокировки конкурентный прием
	// мог сдвинуть водяной знак выше. Знак не откатываем: иначе уже
	// учтенные записи выпали бы из итога без пути к переучету.
	if lastSeq > asOfMaxSeq {
		asOfMaxSeq = lastSeq
	}

	amounts, err := s.settlementRepo.ListInScopeByGroupTx(ctx, tx, key, asOfMaxSeq)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list settlements: %w", op, err)
	}

	newTotal, err := s.sumUSD(ctx, amounts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.exposureRepo.UpdateTx(ctx, tx, key, newTotal, asOfMaxSeq); err != nil {
		return nil, fmt.Errorf("%s: failed to update exposure: %w", op, err)
	}

	s.log.Info("группа пересчитана",
		slog.String("group", key.String()),
		slog.String("previous_total", prevTotal.String()),
		slog.String("new_total", newTotal.String()),
		slog.Int("settlements", len(amounts)))

	return &models.RecalcResult{
		PreviousTotal:       prevTotal,
		NewTotal:            newTotal,
		SettlementsIncluded: len(amounts),
		AsOfSeq:             asOfMaxSeq,
	}, nil
}

func (s *ExposureService) GetTotal(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error) {
	const op = "service.GetTotal"

	total, err := s.exposureRepo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// TotalAsOfSeqTx — итог группы на момент записи с данным seq_id: сумма
// входящих в расчет записей с seq_id <= asOfSeq. В отличие от нарастающего
// итога не меняется от более поздних поступлений и переживает пересчет.
func (s *ExposureService) TotalAsOfSeqTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error) {
	const op = "service.TotalAsOfSeq"

	amounts, err := s.settlementRepo.ListInScopeByGroupTx(ctx, tx, key, asOfSeq)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	total, err := s.sumUSD(ctx, amounts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

func (s *ExposureService) TotalAsOfSeq(ctx context.Context, key models.ExposureKey, asOfSeq int64) (decimal.Decimal, error) {
	const op = "service.TotalAsOfSeq"

	amounts, err := s.settlementRepo.ListInScopeByGroup(ctx, key, asOfSeq)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	total, err := s.sumUSD(ctx, amounts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

func (s *ExposureService) sumUSD(ctx context.Context, amounts []models.ScopedAmount) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		usdAmount, err := s.rates.ToUSD(ctx, a.Amount, a.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("seq %d: %w", a.SeqID, err)
		}
		total = total.Add(usdAmount)
	}
	return total, nil
}
