package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/services"
)

// decodeParams unmarshals the envelope params into a typed struct. Unknown
// fields are rejected so typos surface as 400s instead of silent defaults.
func decodeParams(r *http.Request, out any) error {
	req, ok := envelope.RequestFromContext(r.Context())
	if !ok {
		return errors.New("request envelope missing from context")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeInvalidParams(w http.ResponseWriter, r *http.Request, err error) {
	envelope.WriteError(w, r, envelope.CodeInvalidArgument, "invalid params: "+err.Error(), nil)
}

// writeCartError maps cart service sentinels onto envelope codes.
func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		envelope.WriteError(w, r, envelope.CodeInvalidArgument, "invalid cart request", nil)
	case errors.Is(err, services.ErrItemNotFound):
		envelope.WriteError(w, r, envelope.CodeNotFound, "item not found", nil)
	case errors.Is(err, services.ErrItemOutOfStock):
		envelope.WriteError(w, r, envelope.CodeOutOfStock, "requested quantity is not in stock", nil)
	case errors.Is(err, services.ErrCartNotActive):
		envelope.WriteError(w, r, envelope.CodeCartExpired, "cart is no longer active", nil)
	case errors.Is(err, services.ErrCartNotFound):
		envelope.WriteError(w, r, envelope.CodeNotFound, "cart not found", nil)
	case errors.Is(err, services.ErrCartConflict):
		envelope.WriteError(w, r, envelope.CodeConflict, "cart was modified concurrently", nil)
	default:
		envelope.WriteError(w, r, envelope.CodeUpstreamError, "cart storage is unavailable", nil)
	}
}

// writeCheckoutError maps checkout service sentinels onto envelope codes.
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var confirmErr *services.ConfirmationRequiredError
	var blockedErr *services.ComplianceBlockedError
	switch {
	case errors.As(err, &confirmErr):
		envelope.WriteError(w, r, envelope.CodeNeedsUserConfirmation, "user confirmation required before checkout", map[string]any{
			"confirmation_items": confirmationItemViews(confirmErr.ConfirmationItems),
		})
	case errors.As(err, &blockedErr):
		envelope.WriteError(w, r, envelope.CodeComplianceBlocked, "compliance rules block one or more items", map[string]any{
			"verdicts": verdictViews(blockedErr.Verdicts),
		})
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		envelope.WriteError(w, r, envelope.CodeInvalidArgument, "invalid checkout request", nil)
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		envelope.WriteError(w, r, envelope.CodeCartEmpty, "cart has no items", nil)
	case errors.Is(err, services.ErrCheckoutNotFound):
		envelope.WriteError(w, r, envelope.CodeNotFound, "resource not found", nil)
	case errors.Is(err, services.ErrCheckoutConflict):
		envelope.WriteError(w, r, envelope.CodeConflict, "cart already backs a draft order", nil)
	default:
		envelope.WriteError(w, r, envelope.CodeUpstreamError, "checkout backend is unavailable", nil)
	}
}

// writeEvidenceError maps evidence service sentinels onto envelope codes.
func writeEvidenceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrEvidenceInvalidInput):
		envelope.WriteError(w, r, envelope.CodeInvalidArgument, "invalid evidence request", nil)
	case errors.Is(err, services.ErrEvidenceNotFound):
		envelope.WriteError(w, r, envelope.CodeNotFound, "snapshot or draft order not found", nil)
	case errors.Is(err, services.ErrEvidenceConflict):
		envelope.WriteError(w, r, envelope.CodeConflict, "snapshot is already attached", nil)
	default:
		envelope.WriteError(w, r, envelope.CodeUpstreamError, "evidence storage is unavailable", nil)
	}
}

type cartItemView struct {
	SKUID           string            `json:"sku_id"`
	OfferID         string            `json:"offer_id,omitempty"`
	Title           string            `json:"title"`
	Quantity        int               `json:"quantity"`
	UnitPrice       int64             `json:"unit_price"`
	Currency        string            `json:"currency"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
	AddedAt         time.Time         `json:"added_at"`
}

type cartView struct {
	CartID    string         `json:"cart_id"`
	UserID    string         `json:"user_id"`
	Status    string         `json:"status"`
	Currency  string         `json:"currency"`
	Items     []cartItemView `json:"items"`
	Subtotal  int64          `json:"subtotal"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func buildCartView(cart domain.Cart) cartView {
	items := make([]cartItemView, 0, len(cart.Items))
	var subtotal int64
	for _, line := range cart.Items {
		subtotal += line.UnitPrice * int64(line.Quantity)
		items = append(items, cartItemView{
			SKUID:           line.SKUID,
			OfferID:         line.OfferID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			Currency:        line.Currency,
			SelectedOptions: line.SelectedOptions,
			AddedAt:         line.AddedAt,
		})
	}
	return cartView{
		CartID:    cart.ID,
		UserID:    cart.UserID,
		Status:    string(cart.Status),
		Currency:  cart.Currency,
		Items:     items,
		Subtotal:  subtotal,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
}

type breakdownView struct {
	Subtotal      int64  `json:"subtotal"`
	ShippingCost  int64  `json:"shipping_cost"`
	TaxEstimate   int64  `json:"tax_estimate"`
	PayableAmount int64  `json:"payable_amount"`
	Currency      string `json:"currency"`
}

func buildBreakdownView(b domain.OrderBreakdown) breakdownView {
	return breakdownView{
		Subtotal:      b.Subtotal,
		ShippingCost:  b.ShippingCost,
		TaxEstimate:   b.TaxEstimate,
		PayableAmount: b.PayableAmount,
		Currency:      b.Currency,
	}
}

type componentView struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

type totalQuoteView struct {
	CartID      string          `json:"cart_id"`
	Breakdown   breakdownView   `json:"breakdown"`
	Components  []componentView `json:"components"`
	Assumptions []string        `json:"assumptions,omitempty"`
}

func buildTotalQuoteView(quote domain.TotalQuote) totalQuoteView {
	components := make([]componentView, 0, len(quote.Components))
	for _, c := range quote.Components {
		components = append(components, componentView{Type: c.Type, Amount: c.Amount})
	}
	return totalQuoteView{
		CartID:      quote.CartID,
		Breakdown:   buildBreakdownView(quote.Breakdown),
		Components:  components,
		Assumptions: quote.Assumptions,
	}
}

type confirmationItemView struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RequiresAck bool   `json:"requires_ack"`
}

func confirmationItemViews(items []domain.ConfirmationItem) []confirmationItemView {
	out := make([]confirmationItemView, 0, len(items))
	for _, item := range items {
		out = append(out, confirmationItemView{
			Type:        item.Type,
			Title:       item.Title,
			Description: item.Description,
			RequiresAck: item.RequiresAck,
		})
	}
	return out
}

type draftOrderView struct {
	DraftOrderID       string                 `json:"draft_order_id"`
	UserID             string                 `json:"user_id"`
	CartID             string                 `json:"cart_id"`
	Status             string                 `json:"status"`
	Items              []cartItemView         `json:"items"`
	DestinationCountry string                 `json:"destination_country"`
	AddressID          string                 `json:"address_id,omitempty"`
	ShippingOptionID   string                 `json:"shipping_option_id,omitempty"`
	Breakdown          *breakdownView         `json:"breakdown,omitempty"`
	ConfirmationItems  []confirmationItemView `json:"confirmation_items,omitempty"`
	EvidenceSnapshotID string                 `json:"evidence_snapshot_id,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	ExpiresAt          time.Time              `json:"expires_at"`
}

func buildDraftOrderView(draft domain.DraftOrder) draftOrderView {
	items := make([]cartItemView, 0, len(draft.Items))
	for _, line := range draft.Items {
		items = append(items, cartItemView{
			SKUID:           line.SKUID,
			OfferID:         line.OfferID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			Currency:        line.Currency,
			SelectedOptions: line.SelectedOptions,
			AddedAt:         line.AddedAt,
		})
	}
	breakdown := buildBreakdownView(draft.Breakdown)
	return draftOrderView{
		DraftOrderID:       draft.ID,
		UserID:             draft.UserID,
		CartID:             draft.CartID,
		Status:             string(draft.Status),
		Items:              items,
		DestinationCountry: draft.DestinationCountry,
		AddressID:          draft.AddressID,
		ShippingOptionID:   draft.ShippingOptionID,
		Breakdown:          &breakdown,
		ConfirmationItems:  confirmationItemViews(draft.ConfirmationItems),
		EvidenceSnapshotID: draft.EvidenceSnapshotID,
		CreatedAt:          draft.CreatedAt,
		ExpiresAt:          draft.ExpiresAt,
	}
}

type issueView struct {
	RuleID   string `json:"rule_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type restrictionView struct {
	RuleID         string   `json:"rule_id"`
	AllowedMethods []string `json:"allowed_methods,omitempty"`
	BlockedMethods []string `json:"blocked_methods,omitempty"`
}

type verdictView struct {
	Allowed              bool              `json:"allowed"`
	Issues               []issueView       `json:"issues"`
	RequiredDocs         []string          `json:"required_docs"`
	Warnings             []string          `json:"warnings"`
	ShippingRestrictions []restrictionView `json:"shipping_restrictions,omitempty"`
	RulesetVersion       string            `json:"ruleset_version"`
}

func buildVerdictView(verdict domain.ComplianceVerdict) verdictView {
	issues := make([]issueView, 0, len(verdict.Issues))
	for _, issue := range verdict.Issues {
		issues = append(issues, issueView{
			RuleID:   issue.RuleID,
			Code:     issue.Code,
			Message:  issue.Message,
			Severity: string(issue.Severity),
		})
	}
	restrictions := make([]restrictionView, 0, len(verdict.ShippingRestrictions))
	for _, restriction := range verdict.ShippingRestrictions {
		restrictions = append(restrictions, restrictionView{
			RuleID:         restriction.RuleID,
			AllowedMethods: restriction.AllowedMethods,
			BlockedMethods: restriction.BlockedMethods,
		})
	}
	docs := verdict.RequiredDocs
	if docs == nil {
		docs = []string{}
	}
	warnings := verdict.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return verdictView{
		Allowed:              verdict.Allowed,
		Issues:               issues,
		RequiredDocs:         docs,
		Warnings:             warnings,
		ShippingRestrictions: restrictions,
		RulesetVersion:       verdict.RulesetVersion,
	}
}

func verdictViews(verdicts map[string]domain.ComplianceVerdict) map[string]verdictView {
	out := make(map[string]verdictView, len(verdicts))
	for sku, verdict := range verdicts {
		out[sku] = buildVerdictView(verdict)
	}
	return out
}

type snapshotView struct {
	SnapshotID   string         `json:"snapshot_id"`
	MissionID    string         `json:"mission_id"`
	UserID       string         `json:"user_id"`
	DraftOrderID string         `json:"draft_order_id,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	ToolCalls    []toolCallView `json:"tool_calls"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ContentHash  string         `json:"content_hash"`
	CreatedAt    time.Time      `json:"created_at"`
}

type toolCallView struct {
	Tool         string         `json:"tool"`
	Request      map[string]any `json:"request,omitempty"`
	Response     map[string]any `json:"response,omitempty"`
	ResponseHash string         `json:"response_hash,omitempty"`
	CalledAt     time.Time      `json:"called_at"`
	LatencyMS    int64          `json:"latency_ms"`
}

func buildSnapshotView(snapshot domain.EvidenceSnapshot) snapshotView {
	calls := make([]toolCallView, 0, len(snapshot.ToolCalls))
	for _, call := range snapshot.ToolCalls {
		calls = append(calls, toolCallView{
			Tool:         call.Tool,
			Request:      call.Request,
			Response:     call.Response,
			ResponseHash: call.ResponseHash,
			CalledAt:     call.CalledAt,
			LatencyMS:    call.LatencyMS,
		})
	}
	return snapshotView{
		SnapshotID:   snapshot.ID,
		MissionID:    snapshot.MissionID,
		UserID:       snapshot.UserID,
		DraftOrderID: snapshot.DraftOrderID,
		Context:      snapshot.Context,
		ToolCalls:    calls,
		Metadata:     snapshot.Metadata,
		ContentHash:  snapshot.ContentHash,
		CreatedAt:    snapshot.CreatedAt,
	}
}
