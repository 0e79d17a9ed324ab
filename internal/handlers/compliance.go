package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/services"
)

// ComplianceHandlers exposes the compliance tool endpoints.
type ComplianceHandlers struct {
	compliance services.ComplianceService
}

// NewComplianceHandlers constructs handlers over the compliance service.
func NewComplianceHandlers(compliance services.ComplianceService) *ComplianceHandlers {
	return &ComplianceHandlers{compliance: compliance}
}

// Routes wires the /tools/compliance endpoints onto the provided router.
func (h *ComplianceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/check_item", h.checkItem)
	r.Post("/policy_ruleset_version", h.rulesetVersion)
}

type checkItemParams struct {
	SKUID              string `json:"sku_id"`
	DestinationCountry string `json:"destination_country"`
	ShippingMethod     string `json:"shipping_method,omitempty"`
}

func (h *ComplianceHandlers) checkItem(w http.ResponseWriter, r *http.Request) {
	var params checkItemParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	verdict, err := h.compliance.CheckItem(r.Context(), services.CheckItemCommand{
		SKUID:              params.SKUID,
		DestinationCountry: params.DestinationCountry,
		ShippingMethod:     params.ShippingMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrComplianceInvalidInput):
			envelope.WriteError(w, r, envelope.CodeInvalidArgument, "invalid compliance request", nil)
		case errors.Is(err, services.ErrComplianceItemNotFound):
			envelope.WriteError(w, r, envelope.CodeNotFound, "item not found", nil)
		default:
			envelope.WriteError(w, r, envelope.CodeUpstreamError, "compliance rules are unavailable", nil)
		}
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildVerdictView(verdict))
}

func (h *ComplianceHandlers) rulesetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.compliance.RulesetVersion(r.Context())
	if err != nil {
		envelope.WriteError(w, r, envelope.CodeUpstreamError, "compliance rules are unavailable", nil)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, map[string]any{"ruleset_version": version})
}
