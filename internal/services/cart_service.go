package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: cart repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog repository is required")
)

const maxCartItemQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotActive indicates the cart has left the active state and rejects mutations.
var ErrCartNotActive = errors.New("cart service: cart is not active")

// ErrItemNotFound indicates the SKU does not exist in the catalog.
var ErrItemNotFound = errors.New("cart service: item not found")

// ErrItemOutOfStock indicates the requested quantity exceeds available stock.
var ErrItemOutOfStock = errors.New("cart service: item out of stock")

// CartServiceDeps wires the dependencies for cart operations.
type CartServiceDeps struct {
	Carts           repositories.CartRepository
	Catalog         repositories.CatalogRepository
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	carts    repositories.CartRepository
	catalog  repositories.CatalogRepository
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		carts:    deps.Carts,
		catalog:  deps.Catalog,
		newID:    idGen,
		now:      func() time.Time { return clock().UTC() },
		currency: currency,
		logger:   logger,
	}, nil
}

// CreateCart opens a new active cart, returning the existing active cart when
// the user already has one.
func (s *cartService) CreateCart(ctx context.Context, cmd CreateCartCommand) (domain.Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	if existing, err := s.carts.FindActiveByUser(ctx, uid); err == nil {
		return existing, nil
	} else if !isRepoNotFound(err) {
		return domain.Cart{}, s.translateRepoError(err)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.now()
	cart := domain.Cart{
		ID:        s.newID(),
		UserID:    uid,
		Actor:     cmd.Actor,
		Status:    domain.CartStatusActive,
		Currency:  currency,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.carts.Insert(ctx, cart); err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.created", map[string]any{
		"cart_id": cart.ID,
		"user_id": uid,
	})
	return cart, nil
}

// AddItem validates the SKU against the catalog and adds it to the cart,
// merging quantities for an already-present SKU.
func (s *cartService) AddItem(ctx context.Context, cmd AddItemCommand) (domain.Cart, error) {
	if cmd.Quantity <= 0 || cmd.Quantity > maxCartItemQuantity {
		return domain.Cart{}, ErrCartInvalidInput
	}
	sku := strings.TrimSpace(cmd.SKUID)
	if sku == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadMutableCart(ctx, cmd.UserID, cmd.CartID)
	if err != nil {
		return domain.Cart{}, err
	}

	item, err := s.catalog.FindBySKU(ctx, sku)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, ErrItemNotFound
		}
		return domain.Cart{}, s.translateRepoError(err)
	}

	existingQty := 0
	for _, line := range cart.Items {
		if line.SKUID == sku {
			existingQty = line.Quantity
			break
		}
	}
	if item.Stock < existingQty+cmd.Quantity {
		return domain.Cart{}, ErrItemOutOfStock
	}

	now := s.now()
	merged := false
	for i, line := range cart.Items {
		if line.SKUID == sku {
			cart.Items[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			SKUID:           item.SKUID,
			OfferID:         item.OfferID,
			Title:           item.Title,
			Quantity:        cmd.Quantity,
			UnitPrice:       item.UnitPrice,
			Currency:        item.Currency,
			SelectedOptions: cmd.SelectedOptions,
			AddedAt:         now,
		})
	}
	cart.UpdatedAt = now

	if err := s.carts.Update(ctx, cart); err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// UpdateQuantity replaces the quantity for a SKU already in the cart. A zero
// quantity removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (domain.Cart, error) {
	if cmd.Quantity < 0 || cmd.Quantity > maxCartItemQuantity {
		return domain.Cart{}, ErrCartInvalidInput
	}
	sku := strings.TrimSpace(cmd.SKUID)
	if sku == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity == 0 {
		return s.RemoveItem(ctx, RemoveItemCommand{UserID: cmd.UserID, CartID: cmd.CartID, SKUID: sku})
	}

	cart, err := s.loadMutableCart(ctx, cmd.UserID, cmd.CartID)
	if err != nil {
		return domain.Cart{}, err
	}

	found := false
	for i, line := range cart.Items {
		if line.SKUID == sku {
			item, err := s.catalog.FindBySKU(ctx, sku)
			if err != nil {
				if isRepoNotFound(err) {
					return domain.Cart{}, ErrItemNotFound
				}
				return domain.Cart{}, s.translateRepoError(err)
			}
			if item.Stock < cmd.Quantity {
				return domain.Cart{}, ErrItemOutOfStock
			}
			cart.Items[i].Quantity = cmd.Quantity
			found = true
			break
		}
	}
	if !found {
		return domain.Cart{}, ErrItemNotFound
	}

	cart.UpdatedAt = s.now()
	if err := s.carts.Update(ctx, cart); err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// RemoveItem drops the SKU line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (domain.Cart, error) {
	sku := strings.TrimSpace(cmd.SKUID)
	if sku == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadMutableCart(ctx, cmd.UserID, cmd.CartID)
	if err != nil {
		return domain.Cart{}, err
	}

	kept := cart.Items[:0]
	found := false
	for _, line := range cart.Items {
		if line.SKUID == sku {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return domain.Cart{}, ErrItemNotFound
	}
	cart.Items = kept
	cart.UpdatedAt = s.now()

	if err := s.carts.Update(ctx, cart); err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// GetCart loads a cart by ID, or the user's active cart when no ID is given.
func (s *cartService) GetCart(ctx context.Context, userID, cartID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	if id := strings.TrimSpace(cartID); id != "" {
		cart, err := s.carts.FindByID(ctx, id)
		if err != nil {
			return domain.Cart{}, s.translateRepoError(err)
		}
		if cart.UserID != uid {
			return domain.Cart{}, ErrCartNotFound
		}
		return cart, nil
	}

	cart, err := s.carts.FindActiveByUser(ctx, uid)
	if err != nil {
		return domain.Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

func (s *cartService) loadMutableCart(ctx context.Context, userID, cartID string) (domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.Status != domain.CartStatusActive {
		return domain.Cart{}, ErrCartNotActive
	}
	return cart, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isRepoNotFound(err):
		return ErrCartNotFound
	case isRepoConflict(err):
		return ErrCartConflict
	default:
		return ErrCartUnavailable
	}
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
