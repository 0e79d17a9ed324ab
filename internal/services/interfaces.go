package services

import (
	"context"

	domain "github.com/agentmall/gateway/internal/domain"
)

// CartService owns cart lifecycle and item mutations.
type CartService interface {
	CreateCart(ctx context.Context, cmd CreateCartCommand) (domain.Cart, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (domain.Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (domain.Cart, error)
	GetCart(ctx context.Context, userID, cartID string) (domain.Cart, error)
}

// CreateCartCommand opens a new active cart for the user.
type CreateCartCommand struct {
	UserID   string
	Actor    domain.Actor
	Currency string
}

// AddItemCommand adds a catalog item to the cart.
type AddItemCommand struct {
	UserID          string
	CartID          string
	SKUID           string
	Quantity        int
	SelectedOptions map[string]string
}

// UpdateQuantityCommand replaces the quantity for an item already in the cart.
type UpdateQuantityCommand struct {
	UserID   string
	CartID   string
	SKUID    string
	Quantity int
}

// RemoveItemCommand removes an item from the cart.
type RemoveItemCommand struct {
	UserID string
	CartID string
	SKUID  string
}

// CheckoutService computes totals and manages draft orders.
type CheckoutService interface {
	ComputeTotal(ctx context.Context, cmd ComputeTotalCommand) (domain.TotalQuote, error)
	CreateDraftOrder(ctx context.Context, cmd CreateDraftOrderCommand) (DraftOrderResult, error)
	GetDraftOrderSummary(ctx context.Context, userID, draftOrderID string) (domain.DraftOrder, error)
}

// ComputeTotalCommand prices a cart for a destination.
type ComputeTotalCommand struct {
	UserID             string
	CartID             string
	DestinationCountry string
	Currency           string
}

// CreateDraftOrderCommand freezes the cart into a draft order quote.
type CreateDraftOrderCommand struct {
	UserID             string
	Actor              domain.Actor
	CartID             string
	DestinationCountry string
	AddressID          string
	ShippingOptionID   string
	Consents           domain.Consents
	Currency           string
	IdempotencyKey     string
	DryRun             bool
}

// DraftOrderResult is the creation outcome, including user-facing disclosures.
type DraftOrderResult struct {
	DraftOrder         domain.DraftOrder
	RequiresUserAction bool
	ConfirmationItems  []domain.ConfirmationItem
	ComplianceVerdicts map[string]domain.ComplianceVerdict
	DryRun             bool
}

// ComplianceService evaluates the rule set against items.
type ComplianceService interface {
	CheckItem(ctx context.Context, cmd CheckItemCommand) (domain.ComplianceVerdict, error)
	RulesetVersion(ctx context.Context) (string, error)
}

// CheckItemCommand evaluates one catalog item for a destination country.
// ShippingMethod is optional; when set, shipping restrictions that rule the
// method out surface as issues instead of advisory restrictions.
type CheckItemCommand struct {
	SKUID              string
	DestinationCountry string
	ShippingMethod     string
}

// EvidenceService records and binds immutable evidence snapshots.
type EvidenceService interface {
	CreateSnapshot(ctx context.Context, cmd CreateSnapshotCommand) (domain.EvidenceSnapshot, error)
	GetSnapshot(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error)
	ListByMission(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error)
	AttachToDraftOrder(ctx context.Context, snapshotID, draftOrderID string) error
}

// CreateSnapshotCommand captures the inputs of an evidence snapshot.
type CreateSnapshotCommand struct {
	MissionID string
	UserID    string
	Context   map[string]any
	ToolCalls []domain.ToolCallRecord
	Metadata  map[string]any
}

// AuditService records per-request audit entries.
type AuditService interface {
	Record(ctx context.Context, record domain.AuditRecord)
}
