package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/agentmall/gateway/internal/domain"
	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/repositories"
)

const draftOrderCollection = "draft_orders"

// DraftOrderRepository persists draft orders within Firestore.
type DraftOrderRepository struct {
	base     *pfirestore.BaseRepository[draftOrderDocument]
	provider *pfirestore.Provider
}

// NewDraftOrderRepository constructs a Firestore-backed draft order repository.
func NewDraftOrderRepository(provider *pfirestore.Provider) (*DraftOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("draft order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[draftOrderDocument](provider, draftOrderCollection, nil, nil)
	return &DraftOrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// CreateWithCartTransition inserts the draft and moves the source cart to
// checkout state inside one transaction. The draft create fails if the
// document already exists, and the cart update fails if another draft won the
// race and flipped the cart first.
func (r *DraftOrderRepository) CreateWithCartTransition(ctx context.Context, draft domain.DraftOrder, cart domain.Cart) error {
	if r == nil || r.provider == nil {
		return errors.New("draft order repository not initialised")
	}
	draftID := strings.TrimSpace(draft.ID)
	if draftID == "" {
		return errors.New("draft order repository: draft id is required")
	}
	cartID := strings.TrimSpace(cart.ID)
	if cartID == "" {
		return errors.New("draft order repository: cart id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	draftRef := client.Collection(draftOrderCollection).Doc(draftID)
	cartRef := client.Collection(cartCollection).Doc(cartID)

	return pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		cartSnap, err := tx.Get(cartRef)
		if err != nil {
			return err
		}
		var cartDoc cartDocument
		if err := cartSnap.DataTo(&cartDoc); err != nil {
			return err
		}
		if cartDoc.Status != string(domain.CartStatusActive) {
			return conflictError("draft_orders.create", "cart is not active")
		}

		if err := tx.Create(draftRef, encodeDraftOrder(draft)); err != nil {
			return err
		}
		return tx.Update(cartRef, []firestore.Update{
			{Path: "status", Value: string(domain.CartStatusCheckout)},
			{Path: "updated_at", Value: draft.CreatedAt.UTC()},
		})
	})
}

// FindByID loads the draft order for the given ID.
func (r *DraftOrderRepository) FindByID(ctx context.Context, draftID string) (domain.DraftOrder, error) {
	if r == nil || r.base == nil {
		return domain.DraftOrder{}, errors.New("draft order repository not initialised")
	}
	id := strings.TrimSpace(draftID)
	if id == "" {
		return domain.DraftOrder{}, errors.New("draft order repository: draft id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.DraftOrder{}, err
	}
	return decodeDraftOrder(doc.ID, doc.Data), nil
}

// UpdateStatus transitions the draft's lifecycle state.
func (r *DraftOrderRepository) UpdateStatus(ctx context.Context, draftID string, status domain.DraftOrderStatus, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("draft order repository not initialised")
	}
	id := strings.TrimSpace(draftID)
	if id == "" {
		return errors.New("draft order repository: draft id is required")
	}

	_, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updated_at", Value: updatedAt.UTC()},
	})
	return err
}

// AttachEvidence records the snapshot backing the draft.
func (r *DraftOrderRepository) AttachEvidence(ctx context.Context, draftID, snapshotID string) error {
	if r == nil || r.provider == nil {
		return errors.New("draft order repository not initialised")
	}
	id := strings.TrimSpace(draftID)
	if id == "" {
		return errors.New("draft order repository: draft id is required")
	}
	sid := strings.TrimSpace(snapshotID)
	if sid == "" {
		return errors.New("draft order repository: snapshot id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	draftRef := client.Collection(draftOrderCollection).Doc(id)
	snapshotRef := client.Collection(evidenceCollection).Doc(sid)

	// Both sides of the link move together or not at all.
	return pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(snapshotRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return notFoundError("draft_orders.attach_evidence", "evidence snapshot not found")
			}
			return err
		}
		if err := tx.Update(draftRef, []firestore.Update{
			{Path: "evidence_snapshot_id", Value: sid},
		}); err != nil {
			return err
		}
		return tx.Update(snapshotRef, []firestore.Update{
			{Path: "draft_order_id", Value: id},
		})
	})
}

func encodeDraftOrder(draft domain.DraftOrder) draftOrderDocument {
	doc := draftOrderDocument{
		UserID:             strings.TrimSpace(draft.UserID),
		ActorType:          string(draft.Actor.Type),
		ActorID:            strings.TrimSpace(draft.Actor.ID),
		CartID:             strings.TrimSpace(draft.CartID),
		Status:             string(draft.Status),
		DestinationCountry: strings.ToUpper(strings.TrimSpace(draft.DestinationCountry)),
		AddressID:          strings.TrimSpace(draft.AddressID),
		ShippingOptionID:   strings.TrimSpace(draft.ShippingOptionID),
		Consents: consentsDocument{
			TaxEstimateAck:  draft.Consents.TaxEstimateAck,
			ReturnPolicyAck: draft.Consents.ReturnPolicyAck,
			ComplianceAck:   draft.Consents.ComplianceAck,
		},
		Breakdown: breakdownDocument{
			Subtotal:      draft.Breakdown.Subtotal,
			ShippingCost:  draft.Breakdown.ShippingCost,
			TaxEstimate:   draft.Breakdown.TaxEstimate,
			PayableAmount: draft.Breakdown.PayableAmount,
			Currency:      draft.Breakdown.Currency,
		},
		IdempotencyKey:     strings.TrimSpace(draft.IdempotencyKey),
		EvidenceSnapshotID: strings.TrimSpace(draft.EvidenceSnapshotID),
		CreatedAt:          draft.CreatedAt.UTC(),
		ExpiresAt:          draft.ExpiresAt.UTC(),
	}
	for _, item := range draft.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			SKUID:           item.SKUID,
			OfferID:         item.OfferID,
			Title:           item.Title,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			Currency:        item.Currency,
			SelectedOptions: item.SelectedOptions,
			AddedAt:         item.AddedAt.UTC(),
		})
	}
	for _, ci := range draft.ConfirmationItems {
		doc.ConfirmationItems = append(doc.ConfirmationItems, confirmationItemDocument{
			Type:        ci.Type,
			Title:       ci.Title,
			Description: ci.Description,
			RequiresAck: ci.RequiresAck,
		})
	}
	return doc
}

func decodeDraftOrder(id string, doc draftOrderDocument) domain.DraftOrder {
	draft := domain.DraftOrder{
		ID:     id,
		UserID: doc.UserID,
		Actor: domain.Actor{
			Type: domain.ActorType(doc.ActorType),
			ID:   doc.ActorID,
		},
		CartID:             doc.CartID,
		Status:             domain.DraftOrderStatus(doc.Status),
		DestinationCountry: doc.DestinationCountry,
		AddressID:          doc.AddressID,
		ShippingOptionID:   doc.ShippingOptionID,
		Consents: domain.Consents{
			TaxEstimateAck:  doc.Consents.TaxEstimateAck,
			ReturnPolicyAck: doc.Consents.ReturnPolicyAck,
			ComplianceAck:   doc.Consents.ComplianceAck,
		},
		Breakdown: domain.OrderBreakdown{
			Subtotal:      doc.Breakdown.Subtotal,
			ShippingCost:  doc.Breakdown.ShippingCost,
			TaxEstimate:   doc.Breakdown.TaxEstimate,
			PayableAmount: doc.Breakdown.PayableAmount,
			Currency:      doc.Breakdown.Currency,
		},
		IdempotencyKey:     doc.IdempotencyKey,
		EvidenceSnapshotID: doc.EvidenceSnapshotID,
		CreatedAt:          doc.CreatedAt,
		ExpiresAt:          doc.ExpiresAt,
	}
	for _, item := range doc.Items {
		draft.Items = append(draft.Items, domain.CartItem{
			SKUID:           item.SKUID,
			OfferID:         item.OfferID,
			Title:           item.Title,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			Currency:        item.Currency,
			SelectedOptions: item.SelectedOptions,
			AddedAt:         item.AddedAt,
		})
	}
	for _, ci := range doc.ConfirmationItems {
		draft.ConfirmationItems = append(draft.ConfirmationItems, domain.ConfirmationItem{
			Type:        ci.Type,
			Title:       ci.Title,
			Description: ci.Description,
			RequiresAck: ci.RequiresAck,
		})
	}
	return draft
}

type draftOrderDocument struct {
	UserID             string                     `firestore:"user_id"`
	ActorType          string                     `firestore:"actor_type"`
	ActorID            string                     `firestore:"actor_id"`
	CartID             string                     `firestore:"cart_id"`
	Status             string                     `firestore:"status"`
	Items              []cartItemDocument         `firestore:"items"`
	DestinationCountry string                     `firestore:"destination_country"`
	AddressID          string                     `firestore:"address_id,omitempty"`
	ShippingOptionID   string                     `firestore:"shipping_option_id,omitempty"`
	Consents           consentsDocument           `firestore:"consents"`
	Breakdown          breakdownDocument          `firestore:"breakdown"`
	ConfirmationItems  []confirmationItemDocument `firestore:"confirmation_items,omitempty"`
	IdempotencyKey     string                     `firestore:"idempotency_key,omitempty"`
	EvidenceSnapshotID string                     `firestore:"evidence_snapshot_id,omitempty"`
	CreatedAt          time.Time                  `firestore:"created_at"`
	ExpiresAt          time.Time                  `firestore:"expires_at"`
}

type consentsDocument struct {
	TaxEstimateAck  bool `firestore:"tax_estimate_ack"`
	ReturnPolicyAck bool `firestore:"return_policy_ack"`
	ComplianceAck   bool `firestore:"compliance_ack"`
}

type breakdownDocument struct {
	Subtotal      int64  `firestore:"subtotal"`
	ShippingCost  int64  `firestore:"shipping_cost"`
	TaxEstimate   int64  `firestore:"tax_estimate"`
	PayableAmount int64  `firestore:"payable_amount"`
	Currency      string `firestore:"currency"`
}

type confirmationItemDocument struct {
	Type        string `firestore:"type"`
	Title       string `firestore:"title"`
	Description string `firestore:"description,omitempty"`
	RequiresAck bool   `firestore:"requires_ack"`
}

var _ repositories.DraftOrderRepository = (*DraftOrderRepository)(nil)
