package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/agentmall/gateway/internal/platform/requestctx"
)

// EvidenceSource identifies one input that contributed to a response.
type EvidenceSource struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// EvidenceRef points at the evidence snapshot backing a response payload.
type EvidenceRef struct {
	SnapshotID string           `json:"snapshot_id,omitempty"`
	Sources    []EvidenceSource `json:"sources,omitempty"`
}

// ResponseMeta echoes correlation identifiers back to the caller.
type ResponseMeta struct {
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
}

// ErrorBody is the structured error section of a failure envelope.
type ErrorBody struct {
	Code        Code           `json:"code"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Recoverable bool           `json:"recoverable"`
}

// Response is the uniform wire shape every tool operation returns.
type Response struct {
	OK          bool         `json:"ok"`
	Data        any          `json:"data,omitempty"`
	Error       *ErrorBody   `json:"error,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	TTLSeconds  int64        `json:"ttl_seconds,omitempty"`
	IsDuplicate bool         `json:"is_duplicate,omitempty"`
	Evidence    *EvidenceRef `json:"evidence,omitempty"`
	Meta        ResponseMeta `json:"meta"`
}

// ResponseOption mutates a success response before it is written.
type ResponseOption func(*Response)

// WithWarnings appends non-fatal warnings to the response.
func WithWarnings(warnings ...string) ResponseOption {
	return func(r *Response) {
		if len(warnings) > 0 {
			r.Warnings = append(r.Warnings, warnings...)
		}
	}
}

// WithTTL declares for how many seconds the payload may be treated as fresh.
func WithTTL(seconds int64) ResponseOption {
	return func(r *Response) {
		if seconds > 0 {
			r.TTLSeconds = seconds
		}
	}
}

// WithEvidence attaches the evidence reference backing the payload.
func WithEvidence(ref EvidenceRef) ResponseOption {
	return func(r *Response) {
		if ref.SnapshotID != "" || len(ref.Sources) > 0 {
			r.Evidence = &ref
		}
	}
}

func meta(r *http.Request) ResponseMeta {
	m := ResponseMeta{}
	if env, ok := FromContext(r.Context()); ok {
		m.RequestID = env.RequestID
	}
	if trace, ok := requestctx.Trace(r.Context()); ok {
		m.TraceID = trace.TraceID
		m.SpanID = trace.SpanID
	}
	return m
}

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any, opts ...ResponseOption) {
	resp := Response{OK: true, Data: data, Meta: meta(r)}
	for _, opt := range opts {
		opt(&resp)
	}
	writeJSON(w, status, resp)
}

// WriteError writes a failure envelope; the HTTP status is derived from the code.
func WriteError(w http.ResponseWriter, r *http.Request, code Code, message string, details map[string]any) {
	resp := Response{
		OK: false,
		Error: &ErrorBody{
			Code:        code,
			Message:     message,
			Details:     details,
			Recoverable: Recoverable(code),
		},
		Meta: meta(r),
	}
	writeJSON(w, HTTPStatus(code), resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// MarkDuplicate flags a decoded response envelope as an idempotent replay.
// It operates on the raw JSON so stored bodies can be annotated without
// re-deriving the typed payload.
func MarkDuplicate(body []byte) []byte {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return body
	}
	decoded["is_duplicate"] = true
	annotated, err := json.Marshal(decoded)
	if err != nil {
		return body
	}
	return annotated
}
