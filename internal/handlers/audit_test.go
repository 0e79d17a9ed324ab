package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
)

type stubAuditService struct {
	records []domain.AuditRecord
}

func (s *stubAuditService) Record(_ context.Context, record domain.AuditRecord) {
	s.records = append(s.records, record)
}

func TestAuditMiddlewareRecordsOutcome(t *testing.T) {
	audit := &stubAuditService{}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(5 * time.Millisecond)
		return now
	}

	handler := AuditMiddleware(audit, clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"data":{"cart_id":"cart-1"},"meta":{}}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("req-9", "agent-1"))

	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	record := audit.records[0]
	if record.RequestID != "req-9" {
		t.Fatalf("request id = %q", record.RequestID)
	}
	if record.Actor.ID != "agent-1" || record.Actor.Type != domain.ActorTypeAgent {
		t.Fatalf("unexpected actor %+v", record.Actor)
	}
	if record.Route != "/tools/cart/create" {
		t.Fatalf("route = %q", record.Route)
	}
	if record.Outcome != "ok" || record.ErrorCode != "" || record.Duplicate {
		t.Fatalf("unexpected outcome %+v", record)
	}
	if record.LatencyMS != 5 {
		t.Fatalf("latency = %d, want 5", record.LatencyMS)
	}
}

func TestAuditMiddlewareRecordsErrorAndReplay(t *testing.T) {
	audit := &stubAuditService{}
	handler := AuditMiddleware(audit, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"IDEMPOTENCY_CONFLICT","message":"key reuse"},"is_duplicate":true,"meta":{}}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("req-10", "agent-1"))

	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	record := audit.records[0]
	if record.Outcome != "error" || record.ErrorCode != "IDEMPOTENCY_CONFLICT" {
		t.Fatalf("unexpected outcome %+v", record)
	}
	if !record.Duplicate {
		t.Fatal("expected duplicate flag from is_duplicate")
	}
}

func TestAuditMiddlewareSkipsBareRequests(t *testing.T) {
	audit := &stubAuditService{}
	handler := AuditMiddleware(audit, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if len(audit.records) != 0 {
		t.Fatalf("requests without an envelope must not be audited, got %d", len(audit.records))
	}
}

func TestInspectResponse(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		outcome   string
		errorCode string
		duplicate bool
	}{
		{name: "success", body: `{"ok":true,"meta":{}}`, outcome: "ok"},
		{name: "error", body: `{"ok":false,"error":{"code":"NOT_FOUND"},"meta":{}}`, outcome: "error", errorCode: "NOT_FOUND"},
		{name: "replay", body: `{"ok":true,"is_duplicate":true,"meta":{}}`, outcome: "ok", duplicate: true},
		{name: "garbage", body: `not json`, outcome: "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, errorCode, duplicate := inspectResponse([]byte(tc.body))
			if outcome != tc.outcome || errorCode != tc.errorCode || duplicate != tc.duplicate {
				t.Fatalf("got (%q, %q, %v), want (%q, %q, %v)",
					outcome, errorCode, duplicate, tc.outcome, tc.errorCode, tc.duplicate)
			}
		})
	}
}
