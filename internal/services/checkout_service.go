package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

var (
	errCheckoutCartsRequired       = errors.New("checkout service: cart repository is required")
	errCheckoutDraftsRequired      = errors.New("checkout service: draft order repository is required")
	errCheckoutCatalogRequired     = errors.New("checkout service: catalog repository is required")
	errCheckoutRulesRequired       = errors.New("checkout service: rule repository is required")
	errCheckoutShippingRequired    = errors.New("checkout service: shipping quoter is required")
	errCheckoutTaxRequired         = errors.New("checkout service: tax estimator is required")
	errCheckoutDraftTTLNonPositive = errors.New("checkout service: draft order ttl must be positive")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutCartEmpty indicates the cart carries no items to price.
var ErrCheckoutCartEmpty = errors.New("checkout service: cart is empty")

// ErrCheckoutNotFound indicates the cart or draft order does not exist.
var ErrCheckoutNotFound = errors.New("checkout service: not found")

// ErrCheckoutConflict indicates the cart already backs a draft order.
var ErrCheckoutConflict = errors.New("checkout service: conflict")

// ErrCheckoutUnavailable indicates a backend failure while pricing or persisting.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// ErrDraftOrderExpired indicates the quote lapsed before confirmation.
var ErrDraftOrderExpired = errors.New("checkout service: draft order expired")

// ErrConfirmationRequired indicates missing consents block the draft order.
// Inspect the ConfirmationRequiredError wrapper for the pending disclosures.
var ErrConfirmationRequired = errors.New("checkout service: user confirmation required")

// ErrComplianceBlocked indicates a compliance rule rejected an item in the cart.
// Inspect the ComplianceBlockedError wrapper for per-item verdicts.
var ErrComplianceBlocked = errors.New("checkout service: compliance check failed")

// ConfirmationRequiredError carries the disclosures the user must acknowledge
// before a draft order can be created. No state is written when it is returned.
type ConfirmationRequiredError struct {
	ConfirmationItems []domain.ConfirmationItem
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("checkout service: user confirmation required (%d items pending)", len(e.ConfirmationItems))
}

func (e *ConfirmationRequiredError) Unwrap() error { return ErrConfirmationRequired }

// ComplianceBlockedError carries the per-SKU verdicts that prevented checkout.
type ComplianceBlockedError struct {
	Verdicts map[string]domain.ComplianceVerdict
}

func (e *ComplianceBlockedError) Error() string {
	blocked := 0
	for _, verdict := range e.Verdicts {
		if !verdict.Allowed {
			blocked++
		}
	}
	return fmt.Sprintf("checkout service: compliance check failed (%d items blocked)", blocked)
}

func (e *ComplianceBlockedError) Unwrap() error { return ErrComplianceBlocked }

// CheckoutServiceDeps wires the dependencies for pricing and draft orders.
type CheckoutServiceDeps struct {
	Carts          repositories.CartRepository
	DraftOrders    repositories.DraftOrderRepository
	Catalog        repositories.CatalogRepository
	Rules          repositories.ComplianceRuleRepository
	Shipping       ShippingQuoter
	Tax            TaxEstimator
	DraftOrderTTL  time.Duration
	DefaultCountry string
	Clock          func() time.Time
	Logger         func(context.Context, string, map[string]any)
	IDGenerator    func() string
}

type checkoutService struct {
	carts          repositories.CartRepository
	drafts         repositories.DraftOrderRepository
	catalog        repositories.CatalogRepository
	rules          repositories.ComplianceRuleRepository
	shipping       ShippingQuoter
	tax            TaxEstimator
	draftTTL       time.Duration
	defaultCountry string
	newID          func() string
	now            func() time.Time
	logger         func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartsRequired
	}
	if deps.DraftOrders == nil {
		return nil, errCheckoutDraftsRequired
	}
	if deps.Catalog == nil {
		return nil, errCheckoutCatalogRequired
	}
	if deps.Rules == nil {
		return nil, errCheckoutRulesRequired
	}
	if deps.Shipping == nil {
		return nil, errCheckoutShippingRequired
	}
	if deps.Tax == nil {
		return nil, errCheckoutTaxRequired
	}
	if deps.DraftOrderTTL <= 0 {
		return nil, errCheckoutDraftTTLNonPositive
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	country := strings.ToUpper(strings.TrimSpace(deps.DefaultCountry))
	if country == "" {
		country = "US"
	}

	return &checkoutService{
		carts:          deps.Carts,
		drafts:         deps.DraftOrders,
		catalog:        deps.Catalog,
		rules:          deps.Rules,
		shipping:       deps.Shipping,
		tax:            deps.Tax,
		draftTTL:       deps.DraftOrderTTL,
		defaultCountry: country,
		newID:          idGen,
		now:            func() time.Time { return clock().UTC() },
		logger:         logger,
	}, nil
}

// ComputeTotal prices the cart for a destination without writing any state.
func (s *checkoutService) ComputeTotal(ctx context.Context, cmd ComputeTotalCommand) (domain.TotalQuote, error) {
	cart, err := s.loadCart(ctx, cmd.UserID, cmd.CartID)
	if err != nil {
		return domain.TotalQuote{}, err
	}
	if len(cart.Items) == 0 {
		return domain.TotalQuote{}, ErrCheckoutCartEmpty
	}

	country := strings.ToUpper(strings.TrimSpace(cmd.DestinationCountry))
	if country == "" {
		country = s.defaultCountry
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = cart.Currency
	}

	breakdown, components, assumptions, err := s.price(ctx, cart, country, currency)
	if err != nil {
		return domain.TotalQuote{}, err
	}

	return domain.TotalQuote{
		CartID:      cart.ID,
		Breakdown:   breakdown,
		Components:  components,
		Assumptions: assumptions,
	}, nil
}

// CreateDraftOrder freezes the cart into an unpaid quote. The cart flips to
// checkout state in the same write, so a second creation attempt conflicts.
// Missing consents and blocking compliance findings are rejected before any
// state is written; a dry run prices and validates but persists nothing.
func (s *checkoutService) CreateDraftOrder(ctx context.Context, cmd CreateDraftOrderCommand) (DraftOrderResult, error) {
	cart, err := s.loadCart(ctx, cmd.UserID, cmd.CartID)
	if err != nil {
		return DraftOrderResult{}, err
	}
	if cart.Status != domain.CartStatusActive {
		return DraftOrderResult{}, ErrCheckoutConflict
	}
	if len(cart.Items) == 0 {
		return DraftOrderResult{}, ErrCheckoutCartEmpty
	}

	country := strings.ToUpper(strings.TrimSpace(cmd.DestinationCountry))
	if country == "" {
		country = s.defaultCountry
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = cart.Currency
	}

	if missing := missingConsents(cmd.Consents); len(missing) > 0 {
		return DraftOrderResult{}, &ConfirmationRequiredError{ConfirmationItems: missing}
	}

	verdicts, confirmations, err := s.evaluateCompliance(ctx, cart, country, strings.TrimSpace(cmd.ShippingOptionID))
	if err != nil {
		return DraftOrderResult{}, err
	}
	for _, verdict := range verdicts {
		if !verdict.Allowed {
			return DraftOrderResult{}, &ComplianceBlockedError{Verdicts: verdicts}
		}
	}

	breakdown, _, _, err := s.price(ctx, cart, country, currency)
	if err != nil {
		return DraftOrderResult{}, err
	}

	now := s.now()
	draft := domain.DraftOrder{
		ID:                 s.newID(),
		UserID:             cart.UserID,
		Actor:              cmd.Actor,
		CartID:             cart.ID,
		Status:             domain.DraftOrderStatusPending,
		Items:              cart.Items,
		DestinationCountry: country,
		AddressID:          strings.TrimSpace(cmd.AddressID),
		ShippingOptionID:   strings.TrimSpace(cmd.ShippingOptionID),
		Consents:           cmd.Consents,
		Breakdown:          breakdown,
		ConfirmationItems:  confirmations,
		IdempotencyKey:     cmd.IdempotencyKey,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.draftTTL),
	}

	if cmd.DryRun {
		return DraftOrderResult{
			DraftOrder:         draft,
			ConfirmationItems:  confirmations,
			ComplianceVerdicts: verdicts,
			DryRun:             true,
		}, nil
	}

	frozen := cart
	frozen.Status = domain.CartStatusCheckout
	frozen.UpdatedAt = now
	if err := s.drafts.CreateWithCartTransition(ctx, draft, frozen); err != nil {
		return DraftOrderResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "draft_order.created", map[string]any{
		"draft_order_id": draft.ID,
		"cart_id":        cart.ID,
		"user_id":        cart.UserID,
		"payable_amount": breakdown.PayableAmount,
		"expires_at":     draft.ExpiresAt,
	})

	return DraftOrderResult{
		DraftOrder:         draft,
		ConfirmationItems:  confirmations,
		ComplianceVerdicts: verdicts,
	}, nil
}

// GetDraftOrderSummary loads a draft order, marking it expired on first read
// past its deadline. Expired drafts are reported without their breakdown.
func (s *checkoutService) GetDraftOrderSummary(ctx context.Context, userID, draftOrderID string) (domain.DraftOrder, error) {
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(draftOrderID)
	if uid == "" || id == "" {
		return domain.DraftOrder{}, ErrCheckoutInvalidInput
	}

	draft, err := s.drafts.FindByID(ctx, id)
	if err != nil {
		return domain.DraftOrder{}, s.translateRepoError(err)
	}
	if draft.UserID != uid {
		return domain.DraftOrder{}, ErrCheckoutNotFound
	}

	now := s.now()
	if draft.Status == domain.DraftOrderStatusPending && now.After(draft.ExpiresAt) {
		if err := s.drafts.UpdateStatus(ctx, draft.ID, domain.DraftOrderStatusExpired, now); err != nil {
			s.logger(ctx, "draft_order.expire_failed", map[string]any{
				"draft_order_id": draft.ID,
				"error":          err.Error(),
			})
		}
		draft.Status = domain.DraftOrderStatusExpired
	}
	if draft.Status == domain.DraftOrderStatusExpired {
		return draft, ErrDraftOrderExpired
	}
	return draft, nil
}

func (s *checkoutService) loadCart(ctx context.Context, userID, cartID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, ErrCheckoutInvalidInput
	}

	if id := strings.TrimSpace(cartID); id != "" {
		cart, err := s.carts.FindByID(ctx, id)
		if err != nil {
			return domain.Cart{}, s.translateRepoError(err)
		}
		if cart.UserID != uid {
			return domain.Cart{}, ErrCheckoutNotFound
		}
		return cart, nil
	}

	cart, err := s.carts.FindActiveByUser(ctx, uid)
	if err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

func (s *checkoutService) price(ctx context.Context, cart domain.Cart, country, currency string) (domain.OrderBreakdown, []domain.PricingComponent, []string, error) {
	var subtotal int64
	for _, line := range cart.Items {
		subtotal += line.UnitPrice * int64(line.Quantity)
	}

	shipping, err := s.shipping.Quote(ctx, subtotal, country, currency)
	if err != nil {
		return domain.OrderBreakdown{}, nil, nil, ErrCheckoutUnavailable
	}
	tax, err := s.tax.Estimate(ctx, subtotal, country, currency)
	if err != nil {
		return domain.OrderBreakdown{}, nil, nil, ErrCheckoutUnavailable
	}

	breakdown := domain.OrderBreakdown{
		Subtotal:      subtotal,
		ShippingCost:  shipping.Amount,
		TaxEstimate:   tax.Amount,
		PayableAmount: subtotal + shipping.Amount + tax.Amount,
		Currency:      currency,
	}
	components := []domain.PricingComponent{
		{Type: "subtotal", Amount: subtotal},
		{Type: "shipping", Amount: shipping.Amount},
		{Type: "tax", Amount: tax.Amount},
	}
	assumptions := []string{
		fmt.Sprintf("tax estimated via %s at %d bps for %s", tax.Method, tax.RateBPS, country),
		fmt.Sprintf("shipping quoted for option %s (%d-%d days)", shipping.OptionID, shipping.ETAMinDays, shipping.ETAMaxDays),
	}
	return breakdown, components, assumptions, nil
}

func (s *checkoutService) evaluateCompliance(ctx context.Context, cart domain.Cart, country, shippingMethod string) (map[string]domain.ComplianceVerdict, []domain.ConfirmationItem, error) {
	skuIDs := make([]string, 0, len(cart.Items))
	for _, line := range cart.Items {
		skuIDs = append(skuIDs, line.SKUID)
	}
	items, err := s.catalog.FindBySKUs(ctx, skuIDs)
	if err != nil {
		return nil, nil, ErrCheckoutUnavailable
	}
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, nil, ErrCheckoutUnavailable
	}
	version, err := s.rules.Version(ctx)
	if err != nil {
		return nil, nil, ErrCheckoutUnavailable
	}

	verdicts := make(map[string]domain.ComplianceVerdict, len(cart.Items))
	var confirmations []domain.ConfirmationItem
	seen := map[string]bool{}
	for _, line := range cart.Items {
		item, ok := items[line.SKUID]
		if !ok {
			return nil, nil, ErrCheckoutNotFound
		}
		verdict := EvaluateRules(rules, item, country, shippingMethod, version)
		verdicts[line.SKUID] = verdict
		for _, warning := range verdict.Warnings {
			if seen[warning] {
				continue
			}
			seen[warning] = true
			confirmations = append(confirmations, domain.ConfirmationItem{
				Type:        "compliance_warning",
				Title:       line.Title,
				Description: warning,
				RequiresAck: false,
			})
		}
	}
	return verdicts, confirmations, nil
}

func missingConsents(consents domain.Consents) []domain.ConfirmationItem {
	var items []domain.ConfirmationItem
	if !consents.TaxEstimateAck {
		items = append(items, domain.ConfirmationItem{
			Type:        "tax_estimate_ack",
			Title:       "Tax estimate",
			Description: "Taxes shown are estimates and may differ at payment time.",
			RequiresAck: true,
		})
	}
	if !consents.ReturnPolicyAck {
		items = append(items, domain.ConfirmationItem{
			Type:        "return_policy_ack",
			Title:       "Return policy",
			Description: "Review and accept the merchant return policy before ordering.",
			RequiresAck: true,
		})
	}
	return items
}

func (s *checkoutService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCheckoutNotFound
		case repoErr.IsConflict():
			return ErrCheckoutConflict
		case repoErr.IsUnavailable():
			return ErrCheckoutUnavailable
		}
	}
	return ErrCheckoutUnavailable
}
