package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/agentmall/gateway/internal/domain"
	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts within Firestore, one document per cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the cart document keyed by cart ID.
func (r *CartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	cartID := strings.TrimSpace(cart.ID)
	if cartID == "" {
		return errors.New("cart repository: cart id is required")
	}

	_, err := r.base.Set(ctx, cartID, encodeCart(cart))
	return err
}

// Update overwrites the cart document.
func (r *CartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.Insert(ctx, cart)
}

// FindByID loads the cart for the given cart ID.
func (r *CartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(doc.ID, doc.Data), nil
}

// FindActiveByUser returns the user's single active cart.
func (r *CartRepository) FindActiveByUser(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("user_id", "==", uid).
			Where("status", "==", string(domain.CartStatusActive)).
			Limit(1)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(docs) == 0 {
		return domain.Cart{}, notFoundError("carts.find_active", "active cart not found")
	}
	return decodeCart(docs[0].ID, docs[0].Data), nil
}

func encodeCart(cart domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:    strings.TrimSpace(cart.UserID),
		ActorType: string(cart.Actor.Type),
		ActorID:   strings.TrimSpace(cart.Actor.ID),
		Status:    string(cart.Status),
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
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
	return doc
}

func decodeCart(id string, doc cartDocument) domain.Cart {
	cart := domain.Cart{
		ID:     id,
		UserID: doc.UserID,
		Actor: domain.Actor{
			Type: domain.ActorType(doc.ActorType),
			ID:   doc.ActorID,
		},
		Status:    domain.CartStatus(doc.Status),
		Currency:  doc.Currency,
		Items:     []domain.CartItem{},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem{
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
	return cart
}

type cartDocument struct {
	UserID    string             `firestore:"user_id"`
	ActorType string             `firestore:"actor_type"`
	ActorID   string             `firestore:"actor_id"`
	Status    string             `firestore:"status"`
	Currency  string             `firestore:"currency"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"created_at"`
	UpdatedAt time.Time          `firestore:"updated_at"`
}

type cartItemDocument struct {
	SKUID           string            `firestore:"sku_id"`
	OfferID         string            `firestore:"offer_id,omitempty"`
	Title           string            `firestore:"title"`
	Quantity        int               `firestore:"quantity"`
	UnitPrice       int64             `firestore:"unit_price"`
	Currency        string            `firestore:"currency"`
	SelectedOptions map[string]string `firestore:"selected_options,omitempty"`
	AddedAt         time.Time         `firestore:"added_at"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
