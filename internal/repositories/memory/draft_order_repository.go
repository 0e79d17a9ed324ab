package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type draftOrderRepository struct {
	store *store
}

func (r *draftOrderRepository) CreateWithCartTransition(_ context.Context, draft domain.DraftOrder, cart domain.Cart) error {
	draftID := strings.TrimSpace(draft.ID)
	if draftID == "" {
		return errors.New("draft order repository: draft id is required")
	}
	cartID := strings.TrimSpace(cart.ID)
	if cartID == "" {
		return errors.New("draft order repository: cart id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.drafts[draftID]; exists {
		return conflictError("draft_orders.create", "draft order already exists")
	}
	stored, ok := r.store.carts[cartID]
	if !ok {
		return notFoundError("draft_orders.create", "cart not found")
	}
	if stored.Status != domain.CartStatusActive {
		return conflictError("draft_orders.create", "cart is not active")
	}

	stored.Status = domain.CartStatusCheckout
	stored.UpdatedAt = draft.CreatedAt
	r.store.carts[cartID] = stored
	r.store.drafts[draftID] = cloneDraft(draft)
	return nil
}

func (r *draftOrderRepository) FindByID(_ context.Context, draftID string) (domain.DraftOrder, error) {
	id := strings.TrimSpace(draftID)
	if id == "" {
		return domain.DraftOrder{}, errors.New("draft order repository: draft id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	draft, ok := r.store.drafts[id]
	if !ok {
		return domain.DraftOrder{}, notFoundError("draft_orders.find", "draft order not found")
	}
	return cloneDraft(draft), nil
}

func (r *draftOrderRepository) UpdateStatus(_ context.Context, draftID string, status domain.DraftOrderStatus, updatedAt time.Time) error {
	id := strings.TrimSpace(draftID)
	if id == "" {
		return errors.New("draft order repository: draft id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	draft, ok := r.store.drafts[id]
	if !ok {
		return notFoundError("draft_orders.update_status", "draft order not found")
	}
	draft.Status = status
	r.store.drafts[id] = draft
	return nil
}

func (r *draftOrderRepository) AttachEvidence(_ context.Context, draftID, snapshotID string) error {
	id := strings.TrimSpace(draftID)
	if id == "" {
		return errors.New("draft order repository: draft id is required")
	}
	sid := strings.TrimSpace(snapshotID)
	if sid == "" {
		return errors.New("draft order repository: snapshot id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	draft, ok := r.store.drafts[id]
	if !ok {
		return notFoundError("draft_orders.attach_evidence", "draft order not found")
	}
	snapshot, ok := r.store.evidence[sid]
	if !ok {
		return notFoundError("draft_orders.attach_evidence", "evidence snapshot not found")
	}

	draft.EvidenceSnapshotID = sid
	snapshot.DraftOrderID = id
	r.store.drafts[id] = draft
	r.store.evidence[sid] = snapshot
	return nil
}

func cloneDraft(draft domain.DraftOrder) domain.DraftOrder {
	dup := draft
	if draft.Items != nil {
		dup.Items = make([]domain.CartItem, len(draft.Items))
		copy(dup.Items, draft.Items)
	}
	if draft.ConfirmationItems != nil {
		dup.ConfirmationItems = make([]domain.ConfirmationItem, len(draft.ConfirmationItems))
		copy(dup.ConfirmationItems, draft.ConfirmationItems)
	}
	return dup
}

var _ repositories.DraftOrderRepository = (*draftOrderRepository)(nil)
