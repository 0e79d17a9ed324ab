package domain

// ShippingQuote is the shipping collaborator's answer for one cart/destination pair.
type ShippingQuote struct {
	OptionID     string
	Carrier      string
	ServiceLevel string
	Amount       int64
	Currency     string
	ETAMinDays   int
	ETAMaxDays   int
}

// TaxQuote is the tax collaborator's estimate for one cart/destination pair.
type TaxQuote struct {
	Amount   int64
	Currency string
	RateBPS  int64
	Method   string
}

// PricingComponent is one line of a total breakdown presented to the caller.
type PricingComponent struct {
	Type   string
	Amount int64
}

// TotalQuote aggregates the priced cart before a draft order freezes it.
type TotalQuote struct {
	CartID      string
	Breakdown   OrderBreakdown
	Components  []PricingComponent
	Assumptions []string
}
