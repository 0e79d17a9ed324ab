package idempotency

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/platform/requestctx"
)

const defaultReplayHeader = "X-Idempotent-Replay"

type clockFunc func() time.Time

type middlewareConfig struct {
	ttl          time.Duration
	replayHeader string
	clock        clockFunc
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithTTL configures how long completed idempotency records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithReplayHeader overrides the header attached to replayed responses.
func WithReplayHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		name = strings.TrimSpace(name)
		if name != "" {
			cfg.replayHeader = name
		}
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock clockFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware enforces at-most-once semantics for operations that carry an
// idempotency key in their request envelope. Requests without a key pass
// through untouched. It must run after the envelope middleware.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		ttl:          DefaultTTL,
		replayHeader: defaultReplayHeader,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultTTL
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := envelope.RequestFromContext(r.Context())
			if !ok || req.Envelope.IdempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			// Dry runs leave no durable state, so their key must stay
			// reusable and their response must never be replayed.
			if req.Envelope.DryRun {
				next.ServeHTTP(w, r)
				return
			}

			logger := requestctx.Logger(r.Context())
			subject := req.Envelope.SubjectID()
			scoped := ScopedKey(subject, r.URL.Path, req.Envelope.IdempotencyKey)
			fingerprint := requestFingerprint(r, req, subject)
			now := cfg.clock().UTC()

			reservation, err := store.Reserve(r.Context(), scoped, fingerprint, now, cfg.ttl)
			if err != nil {
				handleStoreError(w, r, logger, err)
				return
			}

			switch reservation.State {
			case ReservationStateCompleted:
				writeStoredResponse(w, reservation.Record, cfg.replayHeader)
				return
			case ReservationStatePending:
				envelope.WriteError(w, r, envelope.CodeIdempotencyConflict,
					"another request is processing this idempotency key", nil)
				return
			case ReservationStateNew:
				// Continue to handler.
			default:
				envelope.WriteError(w, r, envelope.CodeInternalError, "unexpected idempotency state", nil)
				return
			}

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			response := Response{
				Status:  recorder.Status(),
				Headers: recorder.HeaderSnapshot(),
				Body:    recorder.Body(),
			}

			if err := store.SaveResponse(r.Context(), scoped, fingerprint, response, cfg.clock().UTC(), cfg.ttl); err != nil {
				logger.Error("idempotency: failed to persist response",
					zap.String("idempotency_key", req.Envelope.IdempotencyKey),
					zap.Error(err),
				)
				if releaseErr := store.Release(r.Context(), scoped, fingerprint); releaseErr != nil {
					logger.Error("idempotency: failed to release key after save failure",
						zap.String("idempotency_key", req.Envelope.IdempotencyKey),
						zap.Error(releaseErr),
					)
				}
				envelope.WriteError(w, r, envelope.CodeInternalError, "unable to persist idempotency state", nil)
				return
			}

			if err := recorder.Commit(); err != nil {
				logger.Warn("idempotency: failed to flush response",
					zap.String("idempotency_key", req.Envelope.IdempotencyKey),
					zap.Error(err),
				)
			}
		})
	}
}

// requestFingerprint binds the reservation to the operation and its exact
// params so a reused key with a different payload is rejected, not replayed.
func requestFingerprint(r *http.Request, req envelope.Request, subject string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.ToUpper(r.Method))
	builder.WriteString("|")
	builder.WriteString(r.URL.Path)
	builder.WriteString("|")
	builder.WriteString(subject)
	builder.WriteString("|")
	builder.WriteString(string(req.Envelope.Actor.Type))
	builder.WriteString("|")
	builder.WriteString(req.Envelope.Currency)
	builder.WriteString("|")
	builder.WriteString(hashParams(req.Params))

	return sha256Hex([]byte(builder.String()))
}

func hashParams(params []byte) string {
	if len(params) == 0 {
		return ""
	}
	return sha256Hex(params)
}

func handleStoreError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		envelope.WriteError(w, r, envelope.CodeIdempotencyConflict,
			"idempotency key already used for a different request", nil)
	default:
		if logger != nil {
			logger.Error("idempotency: store error", zap.Error(err))
		}
		envelope.WriteError(w, r, envelope.CodeInternalError, "unable to process idempotency key", nil)
	}
}

// writeStoredResponse replays the recorded response, annotating the envelope
// body so callers can tell the result was served from the idempotency store.
func writeStoredResponse(w http.ResponseWriter, record Record, replayHeader string) {
	headers := headersFromRecord(record.ResponseHeaders)
	for key := range w.Header() {
		w.Header().Del(key)
	}
	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(replayHeader, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(envelope.MarkDuplicate(record.ResponseBody))
	}
}

type responseRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   []byte
}

func newResponseRecorder(parent http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		parent: parent,
		header: make(http.Header),
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	r.status = status
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body = append(r.body, data...)
	return len(data), nil
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Body() []byte {
	if len(r.body) == 0 {
		return nil
	}
	return r.body
}

func (r *responseRecorder) HeaderSnapshot() http.Header {
	return cloneHeader(r.header)
}

func (r *responseRecorder) Commit() error {
	dst := r.parent.Header()
	for key := range dst {
		dst.Del(key)
	}
	for key, values := range r.header {
		for _, value := range values {
			dst.Add(key, value)
		}
	}

	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	r.parent.WriteHeader(status)
	if len(r.body) == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body)
	return err
}

func cloneHeader(src http.Header) http.Header {
	if len(src) == 0 {
		return http.Header{}
	}
	dst := make(http.Header, len(src))
	for key, values := range src {
		copied := make([]string, len(values))
		copy(copied, values)
		dst[key] = copied
	}
	return dst
}
