package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Валюта отчетности: все итоги экспозиции ведутся в USD.
const ReportingCurrency = "USD"

// ExchangeRate — курс валюты к USD. Ровно одна запись на валюту.
type ExchangeRate struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Currency  string          `json:"currency" db:"currency"`
	RateToUSD decimal.Decimal `json:"rate_to_usd" db:"rate_to_usd"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ExchangeRatesResponse — курсы валют с признаком устаревания
type ExchangeRatesResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
	Stale bool                       `json:"stale"`
}
