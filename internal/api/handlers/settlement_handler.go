package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gw-settlement-guard/internal/api/middlew"
	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/service"
	"gw-settlement-guard/pkg/response"
)

type SettlementHandler struct {
	ingest   service.Ingest
	workflow service.Workflow
}

func NewSettlementHandler(ingest service.Ingest, workflow service.Workflow) *SettlementHandler {
	return &SettlementHandler{
		ingest:   ingest,
		workflow: workflow,
	}
}

// Ingest godoc
// @Summary      Принять платежную инструкцию
// @Description  Сохраняет новую версию расчета и обновляет экспозицию его группы
// @Tags         settlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body models.IngestRequest true "Платежная инструкция"
// @Success      201 {object} models.IngestResponse
// @Failure      400 {object} response.ValidationErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Router       /settlements [post]
func (h *SettlementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Ingest"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}

	log.Info("ingest request",
		slog.String("op", op),
		slog.String("settlement_id", req.SettlementID),
		slog.Int64("version", req.SettlementVersion))

	result, err := h.ingest.IngestSettlement(r.Context(), req)
	if err != nil {
		var vErr *custom_err.ValidationError
		switch {
		case errors.As(err, &vErr):
			log.Warn("validation failed", slog.String("op", op), slog.String("error", vErr.Error()))
			response.WriteJSONValidationError(w, log, vErr)
		case errors.Is(err, custom_err.ErrStaleVersion):
			log.Info("stale version rejected", slog.String("op", op), slog.String("settlement_id", req.SettlementID))
			response.WriteJSONError(w, log, http.StatusConflict, "stale_version",
				"Settlement version must be greater than the stored one")
		case errors.Is(err, custom_err.ErrRateNotFound):
			log.Warn("no exchange rate", slog.String("op", op), slog.String("currency", req.Currency))
			response.WriteJSONError(w, log, http.StatusUnprocessableEntity, "rate_not_found",
				"No exchange rate on file for currency "+req.Currency)
		case errors.Is(err, custom_err.ErrConcurrencyConflict):
			log.Info("concurrent update conflict", slog.String("op", op))
			response.WriteJSONError(w, log, http.StatusConflict, "concurrency_conflict",
				"Concurrent update on the exposure group, retry the request")
		default:
			log.Error("failed to ingest settlement", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusCreated, result)
}

// QueryStatus godoc
// @Summary      Статус расчета
// @Description  Возвращает вычисленный workflow-статус, итог группы, лимит и журнал согласования
// @Tags         settlements
// @Security     BearerAuth
// @Produce      json
// @Param        settlementID path string true "Идентификатор расчета"
// @Param        version path int true "Версия расчета"
// @Success      200 {object} models.StatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /settlements/{settlementID}/{version}/status [get]
func (h *SettlementHandler) QueryStatus(w http.ResponseWriter, r *http.Request) {
	const op = "handler.QueryStatus"
	log := middlew.GetLogger(r.Context())

	settlementID := chi.URLParam(r, "settlementID")
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 1 {
		log.Warn("invalid version", slog.String("op", op), slog.String("version", chi.URLParam(r, "version")))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_request", "Version must be a positive integer")
		return
	}

	result, err := h.workflow.QueryStatus(r.Context(), settlementID, version)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrNotFound):
			log.Info("settlement not found", slog.String("op", op), slog.String("settlement_id", settlementID))
			response.WriteJSONError(w, log, http.StatusNotFound, "not_found", "Settlement not found")
		default:
			log.Error("failed to query status", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, result)
}
