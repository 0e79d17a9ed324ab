package envelope

import "net/http"

// Code is a canonical error code carried in response envelopes.
type Code string

const (
	// CodeInvalidArgument indicates the request failed structural or semantic validation.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeUnauthorized indicates missing authentication.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeForbidden indicates insufficient permission.
	CodeForbidden Code = "FORBIDDEN"
	// CodeNotFound indicates the referenced resource does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict indicates a concurrent modification or state conflict.
	CodeConflict Code = "CONFLICT"
	// CodeIdempotencyConflict indicates a duplicate request is still in flight
	// or the idempotency key was reused with a different payload.
	CodeIdempotencyConflict Code = "IDEMPOTENCY_CONFLICT"
	// CodeOutOfStock indicates the requested quantity cannot be fulfilled.
	CodeOutOfStock Code = "OUT_OF_STOCK"
	// CodePriceChanged indicates the quoted price moved since the caller last saw it.
	CodePriceChanged Code = "PRICE_CHANGED"
	// CodeNeedsUserConfirmation indicates the operation requires explicit user acknowledgement.
	CodeNeedsUserConfirmation Code = "NEEDS_USER_CONFIRMATION"
	// CodeConsentRequired indicates a specific consent flag is missing.
	CodeConsentRequired Code = "CONSENT_REQUIRED"
	// CodeComplianceBlocked indicates compliance rules forbid the item/destination pair.
	CodeComplianceBlocked Code = "COMPLIANCE_BLOCKED"
	// CodeCartEmpty indicates a checkout was attempted on an empty cart.
	CodeCartEmpty Code = "CART_EMPTY"
	// CodeCartExpired indicates the cart is no longer usable.
	CodeCartExpired Code = "CART_EXPIRED"
	// CodeExpired indicates the draft order quote lapsed before confirmation.
	CodeExpired Code = "EXPIRED"
	// CodeDraftOrderExpired is the legacy alias some clients expect for EXPIRED.
	CodeDraftOrderExpired Code = "DRAFT_ORDER_EXPIRED"
	// CodeRateLimited indicates the caller exceeded its request budget.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeTimeout indicates an upstream call exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeUpstreamError indicates a dependency failed; safe to retry with backoff.
	CodeUpstreamError Code = "UPSTREAM_ERROR"
	// CodeInternalError indicates an unexpected failure, opaque to the caller.
	CodeInternalError Code = "INTERNAL_ERROR"
)

var codeStatus = map[Code]int{
	CodeInvalidArgument:       http.StatusBadRequest,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeForbidden:             http.StatusForbidden,
	CodeNotFound:              http.StatusNotFound,
	CodeConflict:              http.StatusConflict,
	CodeIdempotencyConflict:   http.StatusConflict,
	CodeOutOfStock:            http.StatusConflict,
	CodePriceChanged:          http.StatusConflict,
	CodeNeedsUserConfirmation: http.StatusUnprocessableEntity,
	CodeConsentRequired:       http.StatusUnprocessableEntity,
	CodeComplianceBlocked:     http.StatusUnprocessableEntity,
	CodeCartEmpty:             http.StatusConflict,
	CodeCartExpired:           http.StatusGone,
	CodeExpired:               http.StatusGone,
	CodeDraftOrderExpired:     http.StatusGone,
	CodeRateLimited:           http.StatusTooManyRequests,
	CodeTimeout:               http.StatusGatewayTimeout,
	CodeUpstreamError:         http.StatusBadGateway,
	CodeInternalError:         http.StatusInternalServerError,
}

// HTTPStatus maps an error code to its transport status. Unknown codes map to 500.
func HTTPStatus(code Code) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Recoverable reports whether the caller may retry the request with backoff
// without changing its input.
func Recoverable(code Code) bool {
	switch code {
	case CodeTimeout, CodeUpstreamError, CodeRateLimited:
		return true
	default:
		return false
	}
}
