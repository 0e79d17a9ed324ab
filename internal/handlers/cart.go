package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/services"
)

// CartHandlers exposes the cart tool endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers over the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /tools/cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create", h.create)
	r.Post("/add_item", h.addItem)
	r.Post("/update_quantity", h.updateQuantity)
	r.Post("/remove_item", h.removeItem)
	r.Post("/get", h.get)
}

type createCartParams struct {
	Currency string `json:"currency,omitempty"`
}

func (h *CartHandlers) create(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params createCartParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	cart, err := h.carts.CreateCart(r.Context(), services.CreateCartCommand{
		UserID:   env.SubjectID(),
		Actor:    env.Actor,
		Currency: params.Currency,
	})
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildCartView(cart))
}

type addItemParams struct {
	CartID          string            `json:"cart_id,omitempty"`
	SKUID           string            `json:"sku_id"`
	Quantity        int               `json:"quantity"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params addItemParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), services.AddItemCommand{
		UserID:          env.SubjectID(),
		CartID:          params.CartID,
		SKUID:           params.SKUID,
		Quantity:        params.Quantity,
		SelectedOptions: params.SelectedOptions,
	})
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildCartView(cart))
}

type updateQuantityParams struct {
	CartID   string `json:"cart_id,omitempty"`
	SKUID    string `json:"sku_id"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params updateQuantityParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), services.UpdateQuantityCommand{
		UserID:   env.SubjectID(),
		CartID:   params.CartID,
		SKUID:    params.SKUID,
		Quantity: params.Quantity,
	})
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildCartView(cart))
}

type removeItemParams struct {
	CartID string `json:"cart_id,omitempty"`
	SKUID  string `json:"sku_id"`
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params removeItemParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), services.RemoveItemCommand{
		UserID: env.SubjectID(),
		CartID: params.CartID,
		SKUID:  params.SKUID,
	})
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildCartView(cart))
}

type getCartParams struct {
	CartID string `json:"cart_id,omitempty"`
}

func (h *CartHandlers) get(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params getCartParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	cart, err := h.carts.GetCart(r.Context(), env.SubjectID(), params.CartID)
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildCartView(cart))
}
