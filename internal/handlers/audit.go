package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/platform/observability"
	"github.com/agentmall/gateway/internal/services"
)

// AuditMiddleware records one audit entry per tool call after the response is
// written. Recording is best effort and never alters the response.
func AuditMiddleware(audit services.AuditService, clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			env, ok := envelope.FromContext(r.Context())
			if !ok || audit == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := clock()
			recorder := &auditRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			outcome, errorCode, duplicate := inspectResponse(recorder.body.Bytes())
			audit.Record(r.Context(), domain.AuditRecord{
				RequestID: env.RequestID,
				Actor:     env.Actor,
				Route:     observability.SanitizeRoute(r.URL.Path),
				Outcome:   outcome,
				ErrorCode: errorCode,
				Duplicate: duplicate,
				DryRun:    env.DryRun,
				LatencyMS: clock().Sub(start).Milliseconds(),
			})
		})
	}
}

// inspectResponse pulls the ok flag, error code, and replay marker back out
// of the written envelope.
func inspectResponse(body []byte) (outcome, errorCode string, duplicate bool) {
	outcome = "error"
	var parsed struct {
		OK          bool `json:"ok"`
		IsDuplicate bool `json:"is_duplicate"`
		Error       *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return outcome, "", false
	}
	if parsed.OK {
		outcome = "ok"
	}
	if parsed.Error != nil {
		errorCode = parsed.Error.Code
	}
	return outcome, errorCode, parsed.IsDuplicate
}

type auditRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *auditRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
