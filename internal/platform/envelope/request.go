package envelope

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"

	"github.com/agentmall/gateway/internal/domain"
)

const (
	defaultLocale   = "en-US"
	defaultCurrency = "USD"
	defaultTimezone = "UTC"

	maxIdempotencyKeyLength = 128
)

// Client describes the caller application embedded in the request envelope.
type Client struct {
	App     string `json:"app"`
	Version string `json:"version"`
}

// TraceRef carries caller-supplied span correlation identifiers.
type TraceRef struct {
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// RequestEnvelope is the immutable, validated wrapper attached to every inbound call.
type RequestEnvelope struct {
	RequestID      string       `json:"request_id"`
	Actor          domain.Actor `json:"-"`
	UserID         string       `json:"user_id,omitempty"`
	SessionID      string       `json:"session_id,omitempty"`
	Locale         string       `json:"locale"`
	Currency       string       `json:"currency"`
	Timezone       string       `json:"timezone"`
	Client         Client       `json:"client"`
	DryRun         bool         `json:"dry_run"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	Trace          *TraceRef    `json:"trace,omitempty"`
}

// Request bundles the validated envelope with the untouched operation params.
type Request struct {
	Envelope RequestEnvelope
	Params   json.RawMessage
}

// ValidationError aggregates per-field failures detected while validating an envelope.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "envelope: invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "envelope: " + strings.Join(parts, "; ")
}

// Details renders the field errors as the structured details map for error envelopes.
func (e *ValidationError) Details() map[string]any {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	fields := make(map[string]any, len(e.Fields))
	for field, msg := range e.Fields {
		fields[field] = msg
	}
	return map[string]any{"fields": fields}
}

type rawEnvelope struct {
	RequestID      *string         `json:"request_id"`
	Actor          *rawActor       `json:"actor"`
	UserID         *string         `json:"user_id"`
	SessionID      *string         `json:"session_id"`
	Locale         *string         `json:"locale"`
	Currency       *string         `json:"currency"`
	Timezone       *string         `json:"timezone"`
	Client         *Client         `json:"client"`
	DryRun         *bool           `json:"dry_run"`
	IdempotencyKey *string         `json:"idempotency_key"`
	Trace          *TraceRef       `json:"trace"`
	Params         json.RawMessage `json:"params"`
}

type rawActor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseRequest validates the raw JSON body, applies envelope defaults, and
// returns the normalized request. Validation failures never reach business
// logic; the returned ValidationError maps each offending field to a message.
func ParseRequest(body []byte) (Request, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Request{}, &ValidationError{Fields: map[string]string{"body": "request body is required"}}
	}

	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Request{}, &ValidationError{Fields: map[string]string{"body": "request body must be a JSON object"}}
	}

	fields := make(map[string]string)

	requestID := ""
	if raw.RequestID != nil {
		requestID = strings.TrimSpace(*raw.RequestID)
	}
	if requestID == "" {
		fields["request_id"] = "request_id is required"
	}

	actor := domain.Actor{}
	if raw.Actor == nil {
		fields["actor"] = "actor is required"
	} else {
		actor.ID = strings.TrimSpace(raw.Actor.ID)
		actor.Type = domain.ActorType(strings.TrimSpace(raw.Actor.Type))
		if actor.ID == "" {
			fields["actor.id"] = "actor.id is required"
		}
		switch actor.Type {
		case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
		default:
			fields["actor.type"] = "actor.type must be one of user, agent, system"
		}
	}

	locale := defaultLocale
	if raw.Locale != nil && strings.TrimSpace(*raw.Locale) != "" {
		tag, err := language.Parse(strings.TrimSpace(*raw.Locale))
		if err != nil {
			fields["locale"] = "locale must be a valid BCP 47 tag"
		} else {
			locale = tag.String()
		}
	}

	currency := defaultCurrency
	if raw.Currency != nil && strings.TrimSpace(*raw.Currency) != "" {
		trimmed := strings.ToUpper(strings.TrimSpace(*raw.Currency))
		if len(trimmed) != 3 {
			fields["currency"] = "currency must be a 3-letter ISO 4217 code"
		} else {
			currency = trimmed
		}
	}

	timezone := defaultTimezone
	if raw.Timezone != nil && strings.TrimSpace(*raw.Timezone) != "" {
		timezone = strings.TrimSpace(*raw.Timezone)
	}

	idempotencyKey := ""
	if raw.IdempotencyKey != nil {
		idempotencyKey = strings.TrimSpace(*raw.IdempotencyKey)
		if len(idempotencyKey) > maxIdempotencyKeyLength {
			fields["idempotency_key"] = "idempotency_key exceeds maximum length"
		}
	}

	if len(fields) > 0 {
		return Request{}, &ValidationError{Fields: fields}
	}

	env := RequestEnvelope{
		RequestID:      requestID,
		Actor:          actor,
		Locale:         locale,
		Currency:       currency,
		Timezone:       timezone,
		IdempotencyKey: idempotencyKey,
		Trace:          raw.Trace,
	}
	if raw.UserID != nil {
		env.UserID = strings.TrimSpace(*raw.UserID)
	}
	if raw.SessionID != nil {
		env.SessionID = strings.TrimSpace(*raw.SessionID)
	}
	if raw.Client != nil {
		env.Client = Client{
			App:     strings.TrimSpace(raw.Client.App),
			Version: strings.TrimSpace(raw.Client.Version),
		}
	}
	if raw.DryRun != nil {
		env.DryRun = *raw.DryRun
	}

	params := raw.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	return Request{Envelope: env, Params: params}, nil
}

// SubjectID resolves the identity used to scope idempotency records and rate
// limits: the user when known, otherwise the acting principal.
func (e RequestEnvelope) SubjectID() string {
	if id := strings.TrimSpace(e.UserID); id != "" {
		return id
	}
	if id := strings.TrimSpace(e.Actor.ID); id != "" {
		return id
	}
	return "anonymous"
}
