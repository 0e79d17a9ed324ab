package memory

import (
	"context"
	"errors"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type cartRepository struct {
	store *store
}

func (r *cartRepository) Insert(_ context.Context, cart domain.Cart) error {
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.carts[id]; exists {
		return conflictError("carts.insert", "cart already exists")
	}
	r.store.carts[id] = cloneCart(cart)
	return nil
}

func (r *cartRepository) Update(_ context.Context, cart domain.Cart) error {
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.carts[id]; !exists {
		return notFoundError("carts.update", "cart not found")
	}
	r.store.carts[id] = cloneCart(cart)
	return nil
}

func (r *cartRepository) FindByID(_ context.Context, cartID string) (domain.Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cart, ok := r.store.carts[id]
	if !ok {
		return domain.Cart{}, notFoundError("carts.find", "cart not found")
	}
	return cloneCart(cart), nil
}

func (r *cartRepository) FindActiveByUser(_ context.Context, userID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, cart := range r.store.carts {
		if cart.UserID == uid && cart.Status == domain.CartStatusActive {
			return cloneCart(cart), nil
		}
	}
	return domain.Cart{}, notFoundError("carts.find_active", "active cart not found")
}

func cloneCart(cart domain.Cart) domain.Cart {
	dup := cart
	if cart.Items != nil {
		dup.Items = make([]domain.CartItem, len(cart.Items))
		copy(dup.Items, cart.Items)
	}
	return dup
}

var _ repositories.CartRepository = (*cartRepository)(nil)
