package services

import (
	"context"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound = &stubRepoError{notFound: true}
	errStubConflict = &stubRepoError{conflict: true}
)

type stubCartRepository struct {
	insertFunc           func(ctx context.Context, cart domain.Cart) error
	updateFunc           func(ctx context.Context, cart domain.Cart) error
	findByIDFunc         func(ctx context.Context, cartID string) (domain.Cart, error)
	findActiveByUserFunc func(ctx context.Context, userID string) (domain.Cart, error)
}

func (s *stubCartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, cart)
}

func (s *stubCartRepository) Update(ctx context.Context, cart domain.Cart) error {
	if s.updateFunc == nil {
		return nil
	}
	return s.updateFunc(ctx, cart)
}

func (s *stubCartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	if s.findByIDFunc == nil {
		return domain.Cart{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, cartID)
}

func (s *stubCartRepository) FindActiveByUser(ctx context.Context, userID string) (domain.Cart, error) {
	if s.findActiveByUserFunc == nil {
		return domain.Cart{}, errStubNotFound
	}
	return s.findActiveByUserFunc(ctx, userID)
}

type stubDraftOrderRepository struct {
	createFunc         func(ctx context.Context, draft domain.DraftOrder, cart domain.Cart) error
	findByIDFunc       func(ctx context.Context, draftID string) (domain.DraftOrder, error)
	updateStatusFunc   func(ctx context.Context, draftID string, status domain.DraftOrderStatus, updatedAt time.Time) error
	attachEvidenceFunc func(ctx context.Context, draftID, snapshotID string) error
}

func (s *stubDraftOrderRepository) CreateWithCartTransition(ctx context.Context, draft domain.DraftOrder, cart domain.Cart) error {
	if s.createFunc == nil {
		return nil
	}
	return s.createFunc(ctx, draft, cart)
}

func (s *stubDraftOrderRepository) FindByID(ctx context.Context, draftID string) (domain.DraftOrder, error) {
	if s.findByIDFunc == nil {
		return domain.DraftOrder{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, draftID)
}

func (s *stubDraftOrderRepository) UpdateStatus(ctx context.Context, draftID string, status domain.DraftOrderStatus, updatedAt time.Time) error {
	if s.updateStatusFunc == nil {
		return nil
	}
	return s.updateStatusFunc(ctx, draftID, status, updatedAt)
}

func (s *stubDraftOrderRepository) AttachEvidence(ctx context.Context, draftID, snapshotID string) error {
	if s.attachEvidenceFunc == nil {
		return nil
	}
	return s.attachEvidenceFunc(ctx, draftID, snapshotID)
}

type stubCatalogRepository struct {
	items map[string]domain.CatalogItem
}

func (s *stubCatalogRepository) FindBySKU(_ context.Context, skuID string) (domain.CatalogItem, error) {
	item, ok := s.items[skuID]
	if !ok {
		return domain.CatalogItem{}, errStubNotFound
	}
	return item, nil
}

func (s *stubCatalogRepository) FindBySKUs(_ context.Context, skuIDs []string) (map[string]domain.CatalogItem, error) {
	out := make(map[string]domain.CatalogItem, len(skuIDs))
	for _, id := range skuIDs {
		if item, ok := s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

type stubRuleRepository struct {
	rules   []domain.ComplianceRule
	version string
	err     error
}

func (s *stubRuleRepository) ListActive(context.Context) ([]domain.ComplianceRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules, nil
}

func (s *stubRuleRepository) Version(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.version == "" {
		return "test-ruleset", nil
	}
	return s.version, nil
}

type stubEvidenceRepository struct {
	insertFunc   func(ctx context.Context, snapshot domain.EvidenceSnapshot) error
	findByIDFunc func(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error)
	listFunc     func(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error)
}

func (s *stubEvidenceRepository) Insert(ctx context.Context, snapshot domain.EvidenceSnapshot) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, snapshot)
}

func (s *stubEvidenceRepository) FindByID(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error) {
	if s.findByIDFunc == nil {
		return domain.EvidenceSnapshot{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, snapshotID)
}

func (s *stubEvidenceRepository) ListByMission(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, missionID, limit)
}

type stubAuditLogRepository struct {
	appendFunc func(ctx context.Context, record domain.AuditRecord) error
}

func (s *stubAuditLogRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	if s.appendFunc == nil {
		return nil
	}
	return s.appendFunc(ctx, record)
}

func (s *stubAuditLogRepository) ListByRequestID(context.Context, string) ([]domain.AuditRecord, error) {
	return nil, nil
}
