package envelope

import (
	"io"
	"net/http"
)

const defaultMaxBodyBytes = 1 << 20

// MiddlewareOption customizes the envelope middleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	maxBodyBytes int64
	skip         func(*http.Request) bool
}

// WithMaxBodyBytes overrides the request body size limit.
func WithMaxBodyBytes(limit int64) MiddlewareOption {
	return func(o *middlewareOptions) {
		if limit > 0 {
			o.maxBodyBytes = limit
		}
	}
}

// WithSkip exempts matching requests from envelope parsing.
func WithSkip(skip func(*http.Request) bool) MiddlewareOption {
	return func(o *middlewareOptions) {
		if skip != nil {
			o.skip = skip
		}
	}
}

// Middleware reads and validates the request envelope before the handler
// runs. Handlers behind it can rely on RequestFromContext succeeding.
func Middleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	options := middlewareOptions{
		maxBodyBytes: defaultMaxBodyBytes,
		skip:         func(*http.Request) bool { return false },
	}
	for _, opt := range opts {
		opt(&options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || options.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, options.maxBodyBytes+1))
			if err != nil {
				WriteError(w, r, CodeInvalidArgument, "failed to read request body", nil)
				return
			}
			if int64(len(body)) > options.maxBodyBytes {
				WriteError(w, r, CodeInvalidArgument, "request body too large", map[string]any{
					"max_bytes": options.maxBodyBytes,
				})
				return
			}

			req, err := ParseRequest(body)
			if err != nil {
				var details map[string]any
				if verr, ok := err.(*ValidationError); ok {
					details = verr.Details()
				}
				WriteError(w, r, CodeInvalidArgument, "invalid request envelope", details)
				return
			}

			ctx := NewContext(r.Context(), req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
