package envelope

import "context"

type contextKey string

const requestKey contextKey = "github.com/agentmall/gateway/envelope/request"

// NewContext stores the validated request on the context.
func NewContext(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestKey, req)
}

// RequestFromContext returns the validated request stored by the middleware.
func RequestFromContext(ctx context.Context) (Request, bool) {
	req, ok := ctx.Value(requestKey).(Request)
	return req, ok
}

// FromContext returns just the envelope portion of the stored request.
func FromContext(ctx context.Context) (RequestEnvelope, bool) {
	req, ok := RequestFromContext(ctx)
	if !ok {
		return RequestEnvelope{}, false
	}
	return req.Envelope, true
}
