package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/services"
)

// CheckoutHandlers exposes the checkout tool endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	clock    func() time.Time
}

// NewCheckoutHandlers constructs handlers over the checkout service.
func NewCheckoutHandlers(checkout services.CheckoutService, clock func() time.Time) *CheckoutHandlers {
	if clock == nil {
		clock = time.Now
	}
	return &CheckoutHandlers{checkout: checkout, clock: clock}
}

// Routes wires the /tools/checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/compute_total", h.computeTotal)
	r.Post("/create_draft_order", h.createDraftOrder)
	r.Post("/get_draft_order_summary", h.getDraftOrderSummary)
}

type computeTotalParams struct {
	CartID             string `json:"cart_id,omitempty"`
	DestinationCountry string `json:"destination_country"`
	Currency           string `json:"currency,omitempty"`
}

func (h *CheckoutHandlers) computeTotal(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params computeTotalParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	quote, err := h.checkout.ComputeTotal(r.Context(), services.ComputeTotalCommand{
		UserID:             env.SubjectID(),
		CartID:             params.CartID,
		DestinationCountry: params.DestinationCountry,
		Currency:           params.Currency,
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildTotalQuoteView(quote))
}

type consentsParams struct {
	TaxEstimateAck  bool `json:"tax_estimate_ack"`
	ReturnPolicyAck bool `json:"return_policy_ack"`
	ComplianceAck   bool `json:"compliance_ack,omitempty"`
}

type createDraftOrderParams struct {
	CartID             string         `json:"cart_id,omitempty"`
	DestinationCountry string         `json:"destination_country"`
	AddressID          string         `json:"address_id,omitempty"`
	ShippingOptionID   string         `json:"shipping_option_id,omitempty"`
	Consents           consentsParams `json:"consents"`
	Currency           string         `json:"currency,omitempty"`
}

type createDraftOrderData struct {
	DraftOrder         draftOrderView         `json:"draft_order"`
	RequiresUserAction bool                   `json:"requires_user_action"`
	ConfirmationItems  []confirmationItemView `json:"confirmation_items"`
	Verdicts           map[string]verdictView `json:"compliance_verdicts,omitempty"`
	DryRun             bool                   `json:"dry_run,omitempty"`
}

func (h *CheckoutHandlers) createDraftOrder(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params createDraftOrderParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	result, err := h.checkout.CreateDraftOrder(r.Context(), services.CreateDraftOrderCommand{
		UserID:             env.SubjectID(),
		Actor:              env.Actor,
		CartID:             params.CartID,
		DestinationCountry: params.DestinationCountry,
		AddressID:          params.AddressID,
		ShippingOptionID:   params.ShippingOptionID,
		Consents: domain.Consents{
			TaxEstimateAck:  params.Consents.TaxEstimateAck,
			ReturnPolicyAck: params.Consents.ReturnPolicyAck,
			ComplianceAck:   params.Consents.ComplianceAck,
		},
		Currency:       params.Currency,
		IdempotencyKey: env.IdempotencyKey,
		DryRun:         env.DryRun,
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	// A draft order is never the end of the flow; payment confirmation
	// always remains with the user.
	data := createDraftOrderData{
		DraftOrder:         buildDraftOrderView(result.DraftOrder),
		RequiresUserAction: true,
		ConfirmationItems:  confirmationItemViews(result.ConfirmationItems),
		Verdicts:           verdictViews(result.ComplianceVerdicts),
		DryRun:             result.DryRun,
	}
	ttl := int64(result.DraftOrder.ExpiresAt.Sub(h.clock().UTC()).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	envelope.WriteSuccess(w, r, http.StatusCreated, data, envelope.WithTTL(ttl))
}

type getDraftOrderSummaryParams struct {
	DraftOrderID string `json:"draft_order_id"`
}

func (h *CheckoutHandlers) getDraftOrderSummary(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params getDraftOrderSummaryParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	draft, err := h.checkout.GetDraftOrderSummary(r.Context(), env.SubjectID(), params.DraftOrderID)
	if err != nil {
		if errors.Is(err, services.ErrDraftOrderExpired) {
			envelope.WriteError(w, r, envelope.CodeExpired, "draft order quote has expired", map[string]any{
				"draft_order_id": draft.ID,
				"status":         string(domain.DraftOrderStatusExpired),
				"expired_at":     draft.ExpiresAt,
			})
			return
		}
		writeCheckoutError(w, r, err)
		return
	}

	view := buildDraftOrderView(draft)
	ttl := int64(draft.ExpiresAt.Sub(h.clock().UTC()).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	envelope.WriteSuccess(w, r, http.StatusOK, view, envelope.WithTTL(ttl))
}
