package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
)

func checkoutFixtureDeps(t *testing.T, now time.Time) (CheckoutServiceDeps, *stubDraftOrderRepository) {
	t.Helper()
	cart := domain.Cart{
		ID: "cart-1", UserID: "user-1", Status: domain.CartStatusActive, Currency: "USD",
		Items: []domain.CartItem{{SKUID: "sku-1", Title: "Notebook", Quantity: 1, UnitPrice: 4999, Currency: "USD"}},
	}
	drafts := &stubDraftOrderRepository{}
	deps := CheckoutServiceDeps{
		Carts: &stubCartRepository{
			findActiveByUserFunc: func(context.Context, string) (domain.Cart, error) { return cart, nil },
			findByIDFunc: func(_ context.Context, cartID string) (domain.Cart, error) {
				if cartID == cart.ID {
					return cart, nil
				}
				return domain.Cart{}, errStubNotFound
			},
		},
		DraftOrders: drafts,
		Catalog: &stubCatalogRepository{items: map[string]domain.CatalogItem{
			"sku-1": {SKUID: "sku-1", CategoryID: "stationery.notebooks", UnitPrice: 4999, Currency: "USD", Stock: 10},
		}},
		Rules:          &stubRuleRepository{version: "v1"},
		Shipping:       NewFlatRateShipping(testPricingConfig()),
		Tax:            NewTableTaxEstimator(testPricingConfig()),
		DraftOrderTTL:  time.Hour,
		DefaultCountry: "US",
		Clock:          func() time.Time { return now },
		IDGenerator:    func() string { return "draft-1" },
	}
	return deps, drafts
}

func fullConsents() domain.Consents {
	return domain.Consents{TaxEstimateAck: true, ReturnPolicyAck: true}
}

func TestCheckoutComputeTotalUSExample(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, _ := checkoutFixtureDeps(t, now)
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	quote, err := service.ComputeTotal(context.Background(), ComputeTotalCommand{
		UserID:             "user-1",
		DestinationCountry: "US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := quote.Breakdown
	if b.Subtotal != 4999 {
		t.Fatalf("expected subtotal 4999, got %d", b.Subtotal)
	}
	if b.ShippingCost != 999 {
		t.Fatalf("expected shipping 999 below free threshold, got %d", b.ShippingCost)
	}
	if b.TaxEstimate != 400 {
		t.Fatalf("expected tax 400, got %d", b.TaxEstimate)
	}
	if b.PayableAmount != 6398 {
		t.Fatalf("expected payable 6398, got %d", b.PayableAmount)
	}
	if len(quote.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(quote.Components))
	}
}

func TestCheckoutComputeTotalEmptyCart(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, _ := checkoutFixtureDeps(t, now)
	deps.Carts = &stubCartRepository{
		findActiveByUserFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", UserID: "user-1", Status: domain.CartStatusActive, Currency: "USD"}, nil
		},
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	if _, err := service.ComputeTotal(context.Background(), ComputeTotalCommand{UserID: "user-1"}); !errors.Is(err, ErrCheckoutCartEmpty) {
		t.Fatalf("expected ErrCheckoutCartEmpty, got %v", err)
	}
}

func TestCheckoutCreateDraftOrderConsentGate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	drafts.createFunc = func(context.Context, domain.DraftOrder, domain.Cart) error {
		t.Fatal("no writes may happen when consents are missing")
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	_, err = service.CreateDraftOrder(context.Background(), CreateDraftOrderCommand{
		UserID:             "user-1",
		DestinationCountry: "US",
		Consents:           domain.Consents{TaxEstimateAck: true},
	})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}

	var confirmErr *ConfirmationRequiredError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmationRequiredError, got %T", err)
	}
	if len(confirmErr.ConfirmationItems) != 1 || confirmErr.ConfirmationItems[0].Type != "return_policy_ack" {
		t.Fatalf("expected pending return_policy_ack, got %+v", confirmErr.ConfirmationItems)
	}
}

func TestCheckoutCreateDraftOrderFreezesQuote(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	var createdDraft domain.DraftOrder
	var frozenCart domain.Cart
	drafts.createFunc = func(_ context.Context, draft domain.DraftOrder, cart domain.Cart) error {
		createdDraft = draft
		frozenCart = cart
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	result, err := service.CreateDraftOrder(context.Background(), CreateDraftOrderCommand{
		UserID:             "user-1",
		DestinationCountry: "us",
		Consents:           fullConsents(),
		IdempotencyKey:     "key-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdDraft.ID != "draft-1" {
		t.Fatalf("expected generated draft id, got %q", createdDraft.ID)
	}
	if createdDraft.Status != domain.DraftOrderStatusPending {
		t.Fatalf("expected pending status, got %q", createdDraft.Status)
	}
	if createdDraft.Breakdown.PayableAmount != 6398 {
		t.Fatalf("expected frozen payable 6398, got %d", createdDraft.Breakdown.PayableAmount)
	}
	if !createdDraft.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry one hour out, got %v", createdDraft.ExpiresAt)
	}
	if createdDraft.DestinationCountry != "US" {
		t.Fatalf("expected normalized country US, got %q", createdDraft.DestinationCountry)
	}
	if frozenCart.Status != domain.CartStatusCheckout {
		t.Fatalf("expected cart frozen to checkout, got %q", frozenCart.Status)
	}
	if result.DryRun {
		t.Fatalf("expected non-dry-run result")
	}
}

func TestCheckoutCreateDraftOrderDryRunSkipsPersistence(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	drafts.createFunc = func(context.Context, domain.DraftOrder, domain.Cart) error {
		t.Fatal("dry run must not persist")
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	result, err := service.CreateDraftOrder(context.Background(), CreateDraftOrderCommand{
		UserID:             "user-1",
		DestinationCountry: "US",
		Consents:           fullConsents(),
		DryRun:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.DryRun {
		t.Fatalf("expected dry run marker on result")
	}
	if result.DraftOrder.Breakdown.PayableAmount != 6398 {
		t.Fatalf("expected priced dry-run draft, got %d", result.DraftOrder.Breakdown.PayableAmount)
	}
}

func TestCheckoutCreateDraftOrderComplianceBlocked(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	deps.Catalog = &stubCatalogRepository{items: map[string]domain.CatalogItem{
		"sku-1": {SKUID: "sku-1", CategoryID: "electronics.batteries", RiskTags: []string{"lithium_battery"}},
	}}
	deps.Rules = &stubRuleRepository{
		rules: []domain.ComplianceRule{{
			ID:        "r1",
			Condition: domain.RuleCondition{Kind: domain.ConditionRiskTag, RiskTag: "lithium_battery"},
			Action:    domain.RuleAction{Kind: domain.ActionRequireCertification, Certification: "UN38.3"},
			Severity:  domain.SeverityError,
		}},
		version: "v1",
	}
	drafts.createFunc = func(context.Context, domain.DraftOrder, domain.Cart) error {
		t.Fatal("blocked checkouts must not persist")
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	_, err = service.CreateDraftOrder(context.Background(), CreateDraftOrderCommand{
		UserID:             "user-1",
		DestinationCountry: "US",
		Consents:           fullConsents(),
	})
	if !errors.Is(err, ErrComplianceBlocked) {
		t.Fatalf("expected ErrComplianceBlocked, got %v", err)
	}
	var blockedErr *ComplianceBlockedError
	if !errors.As(err, &blockedErr) {
		t.Fatalf("expected ComplianceBlockedError, got %T", err)
	}
	if verdict, ok := blockedErr.Verdicts["sku-1"]; !ok || verdict.Allowed {
		t.Fatalf("expected blocking verdict for sku-1, got %+v", blockedErr.Verdicts)
	}
}

func TestCheckoutGetDraftOrderSummaryMarksExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)

	draft := domain.DraftOrder{
		ID: "draft-1", UserID: "user-1", Status: domain.DraftOrderStatusPending,
		ExpiresAt: now.Add(-time.Minute),
	}
	var statusUpdate domain.DraftOrderStatus
	drafts.findByIDFunc = func(context.Context, string) (domain.DraftOrder, error) { return draft, nil }
	drafts.updateStatusFunc = func(_ context.Context, draftID string, status domain.DraftOrderStatus, _ time.Time) error {
		if draftID != "draft-1" {
			t.Fatalf("unexpected draft id %q", draftID)
		}
		statusUpdate = status
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	got, err := service.GetDraftOrderSummary(context.Background(), "user-1", "draft-1")
	if !errors.Is(err, ErrDraftOrderExpired) {
		t.Fatalf("expected ErrDraftOrderExpired, got %v", err)
	}
	if got.Status != domain.DraftOrderStatusExpired {
		t.Fatalf("expected returned draft marked expired, got %q", got.Status)
	}
	if statusUpdate != domain.DraftOrderStatusExpired {
		t.Fatalf("expected persisted expiry transition, got %q", statusUpdate)
	}
}

func TestCheckoutGetDraftOrderSummaryLiveQuote(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	drafts.findByIDFunc = func(context.Context, string) (domain.DraftOrder, error) {
		return domain.DraftOrder{
			ID: "draft-1", UserID: "user-1", Status: domain.DraftOrderStatusPending,
			Breakdown: domain.OrderBreakdown{PayableAmount: 6398, Currency: "USD"},
			ExpiresAt: now.Add(30 * time.Minute),
		}, nil
	}
	drafts.updateStatusFunc = func(context.Context, string, domain.DraftOrderStatus, time.Time) error {
		t.Fatal("live drafts must not transition")
		return nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	got, err := service.GetDraftOrderSummary(context.Background(), "user-1", "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Breakdown.PayableAmount != 6398 {
		t.Fatalf("expected frozen breakdown preserved, got %d", got.Breakdown.PayableAmount)
	}
}

func TestCheckoutGetDraftOrderSummaryOwnership(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, drafts := checkoutFixtureDeps(t, now)
	drafts.findByIDFunc = func(context.Context, string) (domain.DraftOrder, error) {
		return domain.DraftOrder{ID: "draft-1", UserID: "someone-else"}, nil
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	if _, err := service.GetDraftOrderSummary(context.Background(), "user-1", "draft-1"); !errors.Is(err, ErrCheckoutNotFound) {
		t.Fatalf("expected ErrCheckoutNotFound for foreign draft, got %v", err)
	}
}

func TestCheckoutCreateDraftOrderConflictOnFrozenCart(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deps, _ := checkoutFixtureDeps(t, now)
	deps.Carts = &stubCartRepository{
		findActiveByUserFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID: "cart-1", UserID: "user-1", Status: domain.CartStatusCheckout,
				Items: []domain.CartItem{{SKUID: "sku-1", Quantity: 1, UnitPrice: 100}},
			}, nil
		},
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}

	_, err = service.CreateDraftOrder(context.Background(), CreateDraftOrderCommand{
		UserID:   "user-1",
		Consents: fullConsents(),
	})
	if !errors.Is(err, ErrCheckoutConflict) {
		t.Fatalf("expected ErrCheckoutConflict, got %v", err)
	}
}
