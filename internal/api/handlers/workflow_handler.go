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

type WorkflowHandler struct {
	service service.Workflow
}

func NewWorkflowHandler(service service.Workflow) *WorkflowHandler {
	return &WorkflowHandler{
		service: service,
	}
}

// RequestRelease godoc
// @Summary      Запросить релиз заблокированного расчета
// @Description  Переводит расчет из BLOCKED в PENDING_AUTHORISE от имени текущего оператора
// @Tags         workflow
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        settlementID path string true "Идентификатор расчета"
// @Param        version path int true "Версия расчета"
// @Param        request body models.WorkflowActionRequest true "Комментарий оператора"
// @Success      200 {object} models.WorkflowActionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /settlements/{settlementID}/{version}/request-release [post]
func (h *WorkflowHandler) RequestRelease(w http.ResponseWriter, r *http.Request) {
	const op = "handler.RequestRelease"
	log := middlew.GetLogger(r.Context())

	settlementID, version, req, ok := h.parseActionRequest(w, r, op)
	if !ok {
		return
	}

	userID := middlew.GetUserID(r.Context())
	userName := middlew.GetUserName(r.Context())

	result, err := h.service.RequestRelease(r.Context(), settlementID, version, userID, userName, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrNotFound):
			log.Info("settlement not found", slog.String("op", op), slog.String("settlement_id", settlementID))
			response.WriteJSONError(w, log, http.StatusNotFound, "not_found", "Settlement not found")
		case errors.Is(err, custom_err.ErrNotBlocked):
			log.Info("settlement not blocked", slog.String("op", op), slog.String("settlement_id", settlementID))
			response.WriteJSONError(w, log, http.StatusConflict, "not_blocked",
				"Settlement is not blocked, release is not required")
		case errors.Is(err, custom_err.ErrAlreadyAuthorised):
			response.WriteJSONError(w, log, http.StatusConflict, "already_authorised",
				"Settlement is already authorised")
		case errors.Is(err, custom_err.ErrDuplicateRequest):
			log.Info("duplicate release request", slog.String("op", op), slog.String("user_id", userID.String()))
			response.WriteJSONError(w, log, http.StatusConflict, "duplicate_request",
				"Release already requested by this user")
		default:
			log.Error("failed to request release", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, result)
}

// Authorise godoc
// @Summary      Подтвердить релиз расчета
// @Description  Переводит расчет из PENDING_AUTHORISE в AUTHORISED. Подтверждающий не может совпадать ни с одним из запросивших
// @Tags         workflow
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        settlementID path string true "Идентификатор расчета"
// @Param        version path int true "Версия расчета"
// @Param        request body models.WorkflowActionRequest true "Комментарий подтверждающего"
// @Success      200 {object} models.WorkflowActionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /settlements/{settlementID}/{version}/authorise [post]
func (h *WorkflowHandler) Authorise(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Authorise"
	log := middlew.GetLogger(r.Context())

	settlementID, version, req, ok := h.parseActionRequest(w, r, op)
	if !ok {
		return
	}

	userID := middlew.GetUserID(r.Context())
	userName := middlew.GetUserName(r.Context())

	result, err := h.service.Authorise(r.Context(), settlementID, version, userID, userName, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrNotFound):
			log.Info("settlement not found", slog.String("op", op), slog.String("settlement_id", settlementID))
			response.WriteJSONError(w, log, http.StatusNotFound, "not_found", "Settlement not found")
		case errors.Is(err, custom_err.ErrNoReleaseRequest):
			log.Info("no release request", slog.String("op", op), slog.String("settlement_id", settlementID))
			response.WriteJSONError(w, log, http.StatusConflict, "no_release_request",
				"Settlement has no pending release request")
		case errors.Is(err, custom_err.ErrAlreadyAuthorised):
			response.WriteJSONError(w, log, http.StatusConflict, "already_authorised",
				"Settlement is already authorised")
		case errors.Is(err, custom_err.ErrSelfAuthorisation):
			log.Warn("self authorisation rejected", slog.String("op", op), slog.String("user_id", userID.String()))
			response.WriteJSONError(w, log, http.StatusForbidden, "self_authorisation",
				"Requester cannot authorise own release")
		default:
			log.Error("failed to authorise", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, result)
}

// Recalculate godoc
// @Summary      Ручной пересчет экспозиции
// @Description  Пересчитывает итоги всех групп, попавших под фильтр, и пишет запись в журнал
// @Tags         exposure
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body models.RecalculateRequest true "Фильтр пересчета"
// @Success      200 {object} models.RecalculateResponse
// @Failure      400 {object} response.ValidationErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /exposure/recalculate [post]
func (h *WorkflowHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Recalculate"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req models.RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}

	userID := middlew.GetUserID(r.Context())
	userName := middlew.GetUserName(r.Context())

	log.Info("recalculation requested",
		slog.String("op", op),
		slog.String("pts", req.PTS),
		slog.String("processing_entity", req.ProcessingEntity),
		slog.String("user_id", userID.String()))

	result, err := h.service.Recalculate(r.Context(), req, userID, userName)
	if err != nil {
		var vErr *custom_err.ValidationError
		switch {
		case errors.As(err, &vErr):
			log.Warn("validation failed", slog.String("op", op), slog.String("error", vErr.Error()))
			response.WriteJSONValidationError(w, log, vErr)
		case errors.Is(err, custom_err.ErrRateNotFound):
			response.WriteJSONError(w, log, http.StatusUnprocessableEntity, "rate_not_found",
				"No exchange rate on file for a settlement currency in the recalculated range")
		case errors.Is(err, custom_err.ErrConcurrencyConflict):
			log.Info("concurrent update conflict", slog.String("op", op))
			response.WriteJSONError(w, log, http.StatusConflict, "concurrency_conflict",
				"Concurrent update on an exposure group, retry the request")
		default:
			log.Error("failed to recalculate", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, result)
}

func (h *WorkflowHandler) parseActionRequest(w http.ResponseWriter, r *http.Request, op string) (string, int64, models.WorkflowActionRequest, bool) {
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	settlementID := chi.URLParam(r, "settlementID")
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 1 {
		log.Warn("invalid version", slog.String("op", op), slog.String("version", chi.URLParam(r, "version")))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_request", "Version must be a positive integer")
		return "", 0, models.WorkflowActionRequest{}, false
	}

	var req models.WorkflowActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
			return "", 0, models.WorkflowActionRequest{}, false
		}
	}

	return settlementID, version, req, true
}
