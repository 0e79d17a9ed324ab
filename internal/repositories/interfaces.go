package repositories

import (
	"context"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	DraftOrders() DraftOrderRepository
	ComplianceRules() ComplianceRuleRepository
	Evidence() EvidenceRepository
	AuditLogs() AuditLogRepository
	Catalog() CatalogRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns cart header + items persistence. A user has at most one
// active cart at a time.
type CartRepository interface {
	Insert(ctx context.Context, cart domain.Cart) error
	Update(ctx context.Context, cart domain.Cart) error
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	FindActiveByUser(ctx context.Context, userID string) (domain.Cart, error)
}

// DraftOrderRepository persists draft orders. CreateWithCartTransition inserts
// the draft and flips the source cart to checkout state atomically so a cart
// can never back two live drafts.
type DraftOrderRepository interface {
	CreateWithCartTransition(ctx context.Context, draft domain.DraftOrder, cart domain.Cart) error
	FindByID(ctx context.Context, draftID string) (domain.DraftOrder, error)
	UpdateStatus(ctx context.Context, draftID string, status domain.DraftOrderStatus, updatedAt time.Time) error
	AttachEvidence(ctx context.Context, draftID, snapshotID string) error
}

// ComplianceRuleRepository serves the active rule set. ListActive returns
// rules ordered by ascending priority, ties broken by rule ID.
type ComplianceRuleRepository interface {
	ListActive(ctx context.Context) ([]domain.ComplianceRule, error)
	Version(ctx context.Context) (string, error)
}

// EvidenceRepository stores immutable evidence snapshots.
type EvidenceRepository interface {
	Insert(ctx context.Context, snapshot domain.EvidenceSnapshot) error
	FindByID(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error)
	ListByMission(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error)
}

// AuditLogRepository appends per-request audit records. Writes are best
// effort; callers must not fail the request on audit errors.
type AuditLogRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	ListByRequestID(ctx context.Context, requestID string) ([]domain.AuditRecord, error)
}

// CatalogRepository resolves catalog items referenced by cart operations.
type CatalogRepository interface {
	FindBySKU(ctx context.Context, skuID string) (domain.CatalogItem, error)
	FindBySKUs(ctx context.Context, skuIDs []string) (map[string]domain.CatalogItem, error)
}

// HealthRepository verifies backend connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
