package ratesource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client — внешний источник курсов валют к USD.
type Client interface {
	FetchCurrentRates(ctx context.Context) (map[string]decimal.Decimal, error)
	Close() error
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	log.Info("клиент источника курсов создан",
		slog.String("base_url", baseURL),
		slog.Duration("timeout", timeout))

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// ratesPayload — формат ответа фида: курсы строками, чтобы не терять
// точность на float64.
type ratesPayload struct {
	Rates map[string]string `json:"rates"`
}

func (c *HTTPClient) FetchCurrentRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	const op = "ratesource.FetchCurrentRates"

	url := c.baseURL + "/rates?base=USD"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: rate feed returned status %d", op, resp.StatusCode)
	}

	var payload ratesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for currency, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			c.log.Warn("некорректный курс в ответе фида, пропускаем",
				slog.String("currency", currency),
				slog.String("raw", raw))
			continue
		}
		rates[currency] = rate
	}

	c.log.Debug("курсы получены", slog.Int("count", len(rates)))
	return rates, nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
