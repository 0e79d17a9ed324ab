package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type staticRules struct{}

func (staticRules) ListActive(context.Context) ([]domain.ComplianceRule, error) { return nil, nil }
func (staticRules) Version(context.Context) (string, error)                     { return "test", nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(staticRules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return registry
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func assertConflict(t *testing.T, err error) {
	t.Helper()
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func testCart(id, userID string, status domain.CartStatus) domain.Cart {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return domain.Cart{
		ID:       id,
		UserID:   userID,
		Status:   status,
		Currency: "USD",
		Items: []domain.CartItem{
			{SKUID: "sku-1", Title: "Widget", Quantity: 1, UnitPrice: 1299, Currency: "USD", AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCartInsertAndFind(t *testing.T) {
	registry := newTestRegistry(t)
	carts := registry.Carts()
	ctx := context.Background()

	if err := carts.Insert(ctx, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConflict(t, carts.Insert(ctx, testCart("cart-1", "user-1", domain.CartStatusActive)))

	cart, err := carts.FindByID(ctx, "cart-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.UserID != "user-1" || len(cart.Items) != 1 {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	// Mutating the returned copy must not touch the stored cart.
	cart.Items[0].Quantity = 99
	again, err := carts.FindByID(ctx, "cart-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Items[0].Quantity != 1 {
		t.Fatalf("stored cart mutated through returned copy: %+v", again.Items[0])
	}

	_, err = carts.FindByID(ctx, "cart-missing")
	assertNotFound(t, err)
}

func TestCartFindActiveByUser(t *testing.T) {
	registry := newTestRegistry(t)
	carts := registry.Carts()
	ctx := context.Background()

	if err := carts.Insert(ctx, testCart("cart-frozen", "user-1", domain.CartStatusCheckout)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := carts.FindActiveByUser(ctx, "user-1")
	assertNotFound(t, err)

	if err := carts.Insert(ctx, testCart("cart-live", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cart, err := carts.FindActiveByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != "cart-live" {
		t.Fatalf("expected the active cart, got %q", cart.ID)
	}
}

func TestCreateWithCartTransition(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := registry.Carts().Insert(ctx, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	draft := domain.DraftOrder{
		ID:        "draft-1",
		UserID:    "user-1",
		CartID:    "cart-1",
		Status:    domain.DraftOrderStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	cart := testCart("cart-1", "user-1", domain.CartStatusActive)
	if err := registry.DraftOrders().CreateWithCartTransition(ctx, draft, cart); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := registry.Carts().FindByID(ctx, "cart-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.CartStatusCheckout {
		t.Fatalf("cart must freeze with the draft, got %s", stored.Status)
	}

	found, err := registry.DraftOrders().FindByID(ctx, "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Status != domain.DraftOrderStatusPending {
		t.Fatalf("unexpected draft: %+v", found)
	}

	// The frozen cart blocks a second draft, and the cart stays frozen.
	err = registry.DraftOrders().CreateWithCartTransition(ctx, domain.DraftOrder{
		ID: "draft-2", UserID: "user-1", CartID: "cart-1", CreatedAt: now,
	}, cart)
	assertConflict(t, err)

	assertConflict(t, registry.DraftOrders().CreateWithCartTransition(ctx, draft, cart))

	err = registry.DraftOrders().CreateWithCartTransition(ctx, domain.DraftOrder{
		ID: "draft-3", UserID: "user-1", CartID: "cart-missing", CreatedAt: now,
	}, testCart("cart-missing", "user-1", domain.CartStatusActive))
	assertNotFound(t, err)
}

func TestDraftOrderUpdateStatus(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := registry.Carts().Insert(ctx, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	draft := domain.DraftOrder{ID: "draft-1", UserID: "user-1", CartID: "cart-1", Status: domain.DraftOrderStatusPending, CreatedAt: now}
	if err := registry.DraftOrders().CreateWithCartTransition(ctx, draft, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := registry.DraftOrders().UpdateStatus(ctx, "draft-1", domain.DraftOrderStatusExpired, now.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err := registry.DraftOrders().FindByID(ctx, "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Status != domain.DraftOrderStatusExpired {
		t.Fatalf("status = %s", found.Status)
	}

	assertNotFound(t, registry.DraftOrders().UpdateStatus(ctx, "draft-missing", domain.DraftOrderStatusExpired, now))
}

func TestAttachEvidenceBindsBothSides(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := registry.Carts().Insert(ctx, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	draft := domain.DraftOrder{ID: "draft-1", UserID: "user-1", CartID: "cart-1", Status: domain.DraftOrderStatusPending, CreatedAt: now}
	if err := registry.DraftOrders().CreateWithCartTransition(ctx, draft, testCart("cart-1", "user-1", domain.CartStatusActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := domain.EvidenceSnapshot{ID: "snap-1", MissionID: "mission-1", UserID: "user-1", CreatedAt: now}
	if err := registry.Evidence().Insert(ctx, snapshot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := registry.DraftOrders().AttachEvidence(ctx, "draft-1", "snap-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	foundDraft, err := registry.DraftOrders().FindByID(ctx, "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if foundDraft.EvidenceSnapshotID != "snap-1" {
		t.Fatalf("draft missing evidence binding: %+v", foundDraft)
	}
	foundSnapshot, err := registry.Evidence().FindByID(ctx, "snap-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if foundSnapshot.DraftOrderID != "draft-1" {
		t.Fatalf("snapshot missing draft binding: %+v", foundSnapshot)
	}

	assertNotFound(t, registry.DraftOrders().AttachEvidence(ctx, "draft-1", "snap-missing"))
	assertNotFound(t, registry.DraftOrders().AttachEvidence(ctx, "draft-missing", "snap-1"))
}

func TestEvidenceInsertConflictAndList(t *testing.T) {
	registry := newTestRegistry(t)
	evidence := registry.Evidence()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		snapshot := domain.EvidenceSnapshot{
			ID:        "snap-" + string(rune('a'+i)),
			MissionID: "mission-1",
			UserID:    "user-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := evidence.Insert(ctx, snapshot); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assertConflict(t, evidence.Insert(ctx, domain.EvidenceSnapshot{ID: "snap-a", MissionID: "mission-1"}))

	snapshots, err := evidence.ListByMission(ctx, "mission-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(snapshots))
	}
	if snapshots[0].ID != "snap-c" || snapshots[1].ID != "snap-b" {
		t.Fatalf("expected newest first, got %s, %s", snapshots[0].ID, snapshots[1].ID)
	}

	empty, err := evidence.ListByMission(ctx, "mission-other", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(empty))
	}
}

func TestAuditAppendAndList(t *testing.T) {
	registry := newTestRegistry(t)
	audits := registry.AuditLogs()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.AuditRecord{
		{ID: "audit-1", RequestID: "req-1", Route: "/tools/cart/create", Outcome: "ok", CreatedAt: now},
		{ID: "audit-2", RequestID: "req-1", Route: "/tools/cart/add_item", Outcome: "error", ErrorCode: "NOT_FOUND", CreatedAt: now.Add(time.Second)},
		{ID: "audit-3", RequestID: "req-2", Route: "/tools/cart/get", Outcome: "ok", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, record := range records {
		if err := audits.Append(ctx, record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	matched, err := audits.ListByRequestID(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 records, got %d", len(matched))
	}
	if matched[0].ID != "audit-1" || matched[1].ID != "audit-2" {
		t.Fatalf("expected append order, got %s, %s", matched[0].ID, matched[1].ID)
	}
}

func TestCatalogLookup(t *testing.T) {
	registry := newTestRegistry(t)
	registry.SeedCatalog(DemoCatalog()...)
	catalog := registry.Catalog()
	ctx := context.Background()

	item, err := catalog.FindBySKU(ctx, "sku-notebook-a5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.UnitPrice != 1299 || item.Currency != "USD" {
		t.Fatalf("unexpected item: %+v", item)
	}

	_, err = catalog.FindBySKU(ctx, "sku-missing")
	assertNotFound(t, err)

	items, err := catalog.FindBySKUs(ctx, []string{"sku-notebook-a5", "sku-powerbank-20k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}
