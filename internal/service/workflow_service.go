package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/observability/metrics"
	"gw-settlement-guard/internal/storage/postgres"
)

// Workflow — машина состояний согласования релиза. Статус не хранится:
// он проекция нарастающего итога, лимита и append-only журнала.
type Workflow interface {
	RequestRelease(ctx context.Context, settlementID string, version int64, userID uuid.UUID, userName, comment string) (*models.WorkflowActionResponse, error)
	Authorise(ctx context.Context, settlementID string, version int64, userID uuid.UUID, userName, comment string) (*models.WorkflowActionResponse, error)
	Recalculate(ctx context.Context, req models.RecalculateRequest, userID uuid.UUID, userName string) (*models.RecalculateResponse, error)
	QueryStatus(ctx context.Context, settlementID string, version int64) (*models.StatusResponse, error)
}

type WorkflowService struct {
	settlementRepo postgres.SettlementRepository
	activityRepo   postgres.ActivityRepository
	exposure       Exposure
	limits         Limits
	txManager      TxManager
	log            *slog.Logger
}

func NewWorkflowService(
	settlementRepo postgres.SettlementRepository,
	activityRepo postgres.ActivityRepository,
	exposure Exposure,
	limits Limits,
	txManager TxManager,
	log *slog.Logger,
) *WorkflowService {
	return &WorkflowService{
		settlementRepo: settlementRepo,
		activityRepo:   activityRepo,
		exposure:       exposure,
		limits:         limits,
		txManager:      txManager,
		log:            log,
	}
}

// DeriveStatus — чистая проекция статуса. Факты журнала старше проверки
// лимита: AUTHORISED > PENDING_AUTHORISE > BLOCKED > CREATED.
func DeriveStatus(totalUSD, limitUSD decimal.Decimal, trail []models.ActivityRecord) models.WorkflowStatus {
	var requested, authorised bool
	for _, rec := range trail {
		switch rec.ActionType {
		case models.ActionAuthorise:
			authorised = true
		case models.ActionRequestRelease:
			requested = true
		}
	}

	if authorised {
		return models.StatusAuthorised
	}
	if requested {
		return models.StatusPendingAuthorise
	}
	if totalUSD.GreaterThan(limitUSD) {
		return models.StatusBlocked
	}
	return models.StatusCreated
}

func (s *WorkflowService) RequestRelease(ctx context.Context, settlementID string, version int64, userID uuid.UUID, userName, comment string) (*models.WorkflowActionResponse, error) {
	const op = "service.RequestRelease"

	var newStatus models.WorkflowStatus

	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		// Блокировка строки расчета сериализует guard-проверки
		// по конкретной паре (settlement_id, settlement_version).
		stl, err := s.settlementRepo.GetForUpdateTx(ctx, tx, settlementID, version)
		if err != nil {
			return err
		}

		trail, err := s.activityRepo.ListForSettlementTx(ctx, tx, settlementID, version)
		if err != nil {
			return fmt.Errorf("failed to read activity trail: %w", err)
		}

		// Классификация BLOCKED/CREATED — по итогу на момент этой записи,
		// а не по текущему: более поздние поступления не должны задним
		// числом блокировать уже прошедший расчет.
		total, err := s.exposure.TotalAsOfSeqTx(ctx, tx, stl.Group(), stl.SeqID)
		if err != nil {
			return fmt.Errorf("failed to compute as-of total: %w", err)
		}

		limit, err := s.limits.LimitFor(ctx, stl.Group())
		if err != nil {
			return fmt.Errorf("failed to read exposure limit: %w", err)
		}

		switch DeriveStatus(total, limit, trail) {
		case models.StatusCreated:
			return custom_err.ErrNotBlocked
		case models.StatusAuthorised:
			return custom_err.ErrAlreadyAuthorised
		}

		for _, rec := range trail {
			if rec.ActionType == models.ActionRequestRelease && rec.UserID == userID {
				return custom_err.ErrDuplicateRequest
			}
		}

		record := &models.ActivityRecord{
			PTS:               stl.PTS,
			ProcessingEntity:  stl.ProcessingEntity,
			SettlementID:      settlementID,
			SettlementVersion: version,
			ActionType:        models.ActionRequestRelease,
			UserID:            userID,
			UserName:          userName,
			Comment:           comment,
		}
		if err := s.activityRepo.AppendTx(ctx, tx, record); err != nil {
			return err
		}

		newStatus = models.StatusPendingAuthorise
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.ReleaseRequests.Inc()
	s.log.Info("запрошен релиз расчета",
		slog.String("op", op),
		slog.String("settlement_id", settlementID),
		slog.Int64("version", version),
		slog.String("user_id", userID.String()))

	return &models.WorkflowActionResponse{
		Message:           "Release requested",
		SettlementID:      settlementID,
		SettlementVersion: version,
		NewStatus:         newStatus,
	}, nil
}

func (s *WorkflowService) Authorise(ctx context.Context, settlementID string, version int64, userID uuid.UUID, userName, comment string) (*models.WorkflowActionResponse, error) {
	const op = "service.Authorise"

	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		stl, err := s.settlementRepo.GetForUpdateTx(ctx, tx, settlementID, version)
		if err != nil {
			return err
		}

		trail, err := s.activityRepo.ListForSettlementTx(ctx, tx, settlementID, version)
		if err != nil {
			return fmt.Errorf("failed to read activity trail: %w", err)
		}

		var requested bool
		for _, rec := range trail {
			switch rec.ActionType {
			case models.ActionAuthorise:
				return custom_err.ErrAlreadyAuthorised
			case models.ActionRequestRelease:
				requested = true
				// Разделение полномочий: подтверждающий не может быть
				// ни одним из запросивших релиз.
				if rec.UserID == userID {
					return custom_err.ErrSelfAuthorisation
				}
			}
		}
		if !requested {
			return custom_err.ErrNoReleaseRequest
		}

		record := &models.ActivityRecord{
			PTS:               stl.PTS,
			ProcessingEntity:  stl.ProcessingEntity,
			SettlementID:      settlementID,
			SettlementVersion: version,
			ActionType:        models.ActionAuthorise,
			UserID:            userID,
			UserName:          userName,
			Comment:           comment,
		}
		return s.activityRepo.AppendTx(ctx, tx, record)
	})

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.Authorisations.Inc()
	s.log.Info("релиз расчета подтвержден",
		slog.String("op", op),
		slog.String("settlement_id", settlementID),
		slog.Int64("version", version),
		slog.String("authorizer_id", userID.String()))

	return &models.WorkflowActionResponse{
		Message:           "Settlement authorised",
		SettlementID:      settlementID,
		SettlementVersion: version,
		NewStatus:         models.StatusAuthorised,
	}, nil
}

// Recalculate выполняет идемпотентный пересчет всех групп, попавших под
// фильтр. Каждая группа пересчитывается в собственной транзакции и
// получает запись RECALCULATE в журнале. Уже выданные подтверждения
// пересчет не отзывает.
func (s *WorkflowService) Recalculate(ctx context.Context, req models.RecalculateRequest, userID uuid.UUID, userName string) (*models.RecalculateResponse, error) {
	const op = "service.Recalculate"

	dateFrom, dateTo, err := validateRecalcRequest(req)
	if err != nil {
		return nil, err
	}

	groups, err := s.settlementRepo.ListGroupsForRecalc(ctx, req.PTS, req.ProcessingEntity, req.CounterpartyID, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, key := range groups {
		err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
			maxSeq, err := s.settlementRepo.MaxSeqForGroupTx(ctx, tx, key)
			if err != nil {
				return fmt.Errorf("failed to resolve as-of sequence: %w", err)
			}

			result, err := s.exposure.RecalculateGroupTx(ctx, tx, key, maxSeq)
			if err != nil {
				return err
			}

			record := &models.ActivityRecord{
				PTS:              key.PTS,
				ProcessingEntity: key.ProcessingEntity,
				ActionType:       models.ActionRecalculate,
				UserID:           userID,
				UserName:         userName,
				Comment: fmt.Sprintf("%s | group %s | total %s -> %s (%d settlements, as of seq %d)",
					req.Reason, key.String(), result.PreviousTotal.String(), result.NewTotal.String(),
					result.SettlementsIncluded, result.AsOfSeq),
			}
			return s.activityRepo.AppendTx(ctx, tx, record)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: group %s: %w", op, key.String(), err)
		}
		metrics.Recalculations.Inc()
	}

	s.log.Info("пересчет завершен",
		slog.String("op", op),
		slog.Int("groups", len(groups)),
		slog.String("user_id", userID.String()))

	return &models.RecalculateResponse{
		Message:            "Recalculation complete",
		GroupsRecalculated: len(groups),
	}, nil
}

func (s *WorkflowService) QueryStatus(ctx context.Context, settlementID string, version int64) (*models.StatusResponse, error) {
	const op = "service.QueryStatus"

	stl, err := s.settlementRepo.Get(ctx, settlementID, version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trail, err := s.activityRepo.ListForSettlement(ctx, settlementID, version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	asOfTotal, err := s.exposure.TotalAsOfSeq(ctx, stl.Group(), stl.SeqID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	currentTotal := decimal.Zero
	exposureTotal, err := s.exposure.GetTotal(ctx, stl.Group())
	if err != nil && !errors.Is(err, custom_err.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err == nil {
		currentTotal = exposureTotal.TotalUSD
	}

	limit, err := s.limits.LimitFor(ctx, stl.Group())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info := models.WorkflowInfo{Requesters: []models.ApprovalActor{}}
	for _, rec := range trail {
		actor := models.ApprovalActor{
			UserID:    rec.UserID,
			UserName:  rec.UserName,
			Comment:   rec.Comment,
			Timestamp: rec.CreatedAt,
		}
		switch rec.ActionType {
		case models.ActionRequestRelease:
			info.Requesters = append(info.Requesters, actor)
		case models.ActionAuthorise:
			authorizer := actor
			info.Authorizer = &authorizer
		}
	}

	return &models.StatusResponse{
		SettlementID:      settlementID,
		SettlementVersion: version,
		CalculatedStatus:  DeriveStatus(asOfTotal, limit, trail),
		Group:             stl.Group(),
		TotalAsOfUSD:      asOfTotal,
		GroupTotalUSD:     currentTotal,
		ExposureLimitUSD:  limit,
		Approval:          info,
	}, nil
}

func validateRecalcRequest(req models.RecalculateRequest) (time.Time, time.Time, error) {
	vErr := &custom_err.ValidationError{}

	if req.PTS == "" {
		vErr.Add("pts", "is required")
	}
	if req.ProcessingEntity == "" {
		vErr.Add("processing_entity", "is required")
	}
	if req.Reason == "" {
		vErr.Add("reason", "is required")
	}

	var dateFrom, dateTo time.Time
	var err error
	if dateFrom, err = time.Parse(models.DateLayout, req.DateFrom); err != nil {
		vErr.Add("date_from", "must be a date in format "+models.DateLayout)
	}
	if dateTo, err = time.Parse(models.DateLayout, req.DateTo); err != nil {
		vErr.Add("date_to", "must be a date in format "+models.DateLayout)
	}
	if !dateFrom.IsZero() && !dateTo.IsZero() && dateTo.Before(dateFrom) {
		vErr.Add("date_to", "must not be before date_from")
	}

	if vErr.HasViolations() {
		return time.Time{}, time.Time{}, vErr
	}
	return dateFrom, dateTo, nil
}
