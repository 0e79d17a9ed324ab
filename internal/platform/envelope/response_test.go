package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/cart/get", nil)
	ctx := NewContext(req.Context(), Request{Envelope: RequestEnvelope{RequestID: "req-1"}})
	req = req.WithContext(ctx)

	WriteSuccess(rec, req, http.StatusOK, map[string]string{"cart_id": "cart-1"},
		WithWarnings("price may change"),
		WithTTL(300),
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if !resp.OK {
		t.Fatal("expected ok envelope")
	}
	if resp.TTLSeconds != 300 {
		t.Fatalf("expected ttl 300, got %d", resp.TTLSeconds)
	}
	if len(resp.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", resp.Warnings)
	}
	if resp.Meta.RequestID != "req-1" {
		t.Fatalf("expected request id echoed, got %q", resp.Meta.RequestID)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/checkout/create_draft_order", nil)

	WriteError(rec, req, CodeNeedsUserConfirmation, "confirmation required", map[string]any{"missing": "return_policy_ack"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.OK {
		t.Fatal("expected error envelope")
	}
	if resp.Error == nil || resp.Error.Code != CodeNeedsUserConfirmation {
		t.Fatalf("unexpected error body %+v", resp.Error)
	}
	if resp.Error.Recoverable {
		t.Fatal("confirmation errors are not recoverable by retry")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:       http.StatusBadRequest,
		CodeNotFound:              http.StatusNotFound,
		CodeIdempotencyConflict:   http.StatusConflict,
		CodeNeedsUserConfirmation: http.StatusUnprocessableEntity,
		CodeComplianceBlocked:     http.StatusUnprocessableEntity,
		CodeExpired:               http.StatusGone,
		CodeRateLimited:           http.StatusTooManyRequests,
		Code("UNKNOWN"):           http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestMarkDuplicateInjectsFlag(t *testing.T) {
	original := []byte(`{"ok":true,"data":{"cart_id":"cart-1"},"meta":{"request_id":"req-1"}}`)
	marked := MarkDuplicate(original)

	var resp map[string]any
	if err := json.Unmarshal(marked, &resp); err != nil {
		t.Fatalf("invalid marked JSON: %v", err)
	}
	if resp["is_duplicate"] != true {
		t.Fatalf("expected is_duplicate true, got %v", resp["is_duplicate"])
	}
	if data, ok := resp["data"].(map[string]any); !ok || data["cart_id"] != "cart-1" {
		t.Fatalf("payload must survive marking, got %v", resp["data"])
	}
}

func TestMarkDuplicateReturnsOriginalOnBadJSON(t *testing.T) {
	original := []byte("not json")
	if got := MarkDuplicate(original); string(got) != "not json" {
		t.Fatalf("expected original bytes back, got %s", got)
	}
}
