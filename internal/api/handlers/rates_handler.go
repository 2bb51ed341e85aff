package handlers

import (
	"log/slog"
	"net/http"

	"gw-settlement-guard/internal/api/middlew"
	"gw-settlement-guard/internal/service"
	"gw-settlement-guard/pkg/response"
)

type RatesHandler struct {
	service service.Rates
}

func NewRatesHandler(service service.Rates) *RatesHandler {
	return &RatesHandler{
		service: service,
	}
}

// GetExchangeRates godoc
// @Summary      Курсы валют к USD
// @Description  Возвращает сохраненные курсы и признак их устаревания
// @Tags         exchange
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} models.ExchangeRatesResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /exchange/rates [get]
func (h *RatesHandler) GetExchangeRates(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetExchangeRates"
	log := middlew.GetLogger(r.Context())

	rates, err := h.service.GetRates(r.Context())
	if err != nil {
		log.Error("failed to get rates", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "Failed to retrieve exchange rates")
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, rates)
}
