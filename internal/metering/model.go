package metering

import "time"

const (
	DefaultBaseCurrency   = "USD"
	DefaultTargetCurrency = "EUR"

	// ResourceSubscriptions names the rate-limit counter shared by all
	// metered endpoints.
	ResourceSubscriptions = "subscriptions"
)

// Endpoint names used in metrics, logs and usage events.
const (
	EndpointCurrencies = "currencies"
	EndpointConversion = "conversions"
	EndpointHistorical = "historical_rates"
)

type ConversionRequest struct {
	BaseCurrency   string  `json:"base_currency" validate:"required,len=3,alpha"`
	TargetCurrency string  `json:"target_currency" validate:"required,len=3,alpha"`
	Amount         float64 `json:"amount" validate:"gte=0"`
}

type CurrenciesResponse struct {
	Currencies map[string]string `json:"currencies"`
	Credits    int               `json:"credits"`
}

type ConversionResponse struct {
	BaseCurrency    string  `json:"base_currency"`
	TargetCurrency  string  `json:"target_currency"`
	Amount          float64 `json:"amount"`
	Rate            float64 `json:"rate"`
	ConvertedAmount float64 `json:"converted_amount"`
	Credits         int     `json:"credits"`
}

type HistoricalResponse struct {
	BaseCurrency string             `json:"base_currency"`
	Date         string             `json:"date"`
	Rates        map[string]float64 `json:"rates"`
	Credits      int                `json:"credits"`
}

// Usage describes one charged call.
type Usage struct {
	UserID           int64
	Username         string
	Endpoint         string
	CreditsRemaining int
	At               time.Time
}
