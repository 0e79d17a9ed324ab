package services

import (
	"context"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/platform/config"
)

// ShippingQuoter prices delivery for a cart subtotal and destination.
type ShippingQuoter interface {
	Quote(ctx context.Context, subtotal int64, destinationCountry, currency string) (domain.ShippingQuote, error)
}

// TaxEstimator estimates destination tax for a subtotal.
type TaxEstimator interface {
	Estimate(ctx context.Context, subtotal int64, destinationCountry, currency string) (domain.TaxQuote, error)
}

// flatRateShipping quotes a flat fee waived above the free-shipping threshold.
// Deterministic: equal inputs always produce equal quotes.
type flatRateShipping struct {
	threshold int64
	fee       int64
}

// NewFlatRateShipping constructs the built-in shipping quoter from pricing configuration.
func NewFlatRateShipping(cfg config.PricingConfig) ShippingQuoter {
	return &flatRateShipping{
		threshold: cfg.FreeShippingThreshold,
		fee:       cfg.FlatShippingFee,
	}
}

func (q *flatRateShipping) Quote(_ context.Context, subtotal int64, destinationCountry, currency string) (domain.ShippingQuote, error) {
	amount := q.fee
	if subtotal >= q.threshold {
		amount = 0
	}
	return domain.ShippingQuote{
		OptionID:     "standard",
		Carrier:      "default",
		ServiceLevel: "standard",
		Amount:       amount,
		Currency:     strings.ToUpper(strings.TrimSpace(currency)),
		ETAMinDays:   3,
		ETAMaxDays:   7,
	}, nil
}

// tableTaxEstimator applies a per-country basis-point rate with half-up rounding.
type tableTaxEstimator struct {
	rates       map[string]int64
	defaultRate int64
}

// NewTableTaxEstimator constructs the built-in tax estimator from pricing configuration.
func NewTableTaxEstimator(cfg config.PricingConfig) TaxEstimator {
	rates := make(map[string]int64, len(cfg.TaxRateBPSByCountry))
	for country, bps := range cfg.TaxRateBPSByCountry {
		rates[strings.ToUpper(strings.TrimSpace(country))] = bps
	}
	return &tableTaxEstimator{rates: rates, defaultRate: cfg.DefaultTaxRateBPS}
}

func (e *tableTaxEstimator) Estimate(_ context.Context, subtotal int64, destinationCountry, currency string) (domain.TaxQuote, error) {
	country := strings.ToUpper(strings.TrimSpace(destinationCountry))
	rate, ok := e.rates[country]
	if !ok {
		rate = e.defaultRate
	}
	return domain.TaxQuote{
		Amount:   roundHalfUpBPS(subtotal, rate),
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
		RateBPS:  rate,
		Method:   "destination_table",
	}, nil
}

// roundHalfUpBPS computes amount*bps/10000 rounded half-up in integer math.
func roundHalfUpBPS(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}
