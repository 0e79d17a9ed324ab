package envelope

import (
	"errors"
	"strings"
	"testing"

	domain "github.com/agentmall/gateway/internal/domain"
)

func TestParseRequestAppliesDefaults(t *testing.T) {
	body := []byte(`{
		"request_id": "req-1",
		"actor": {"type": "agent", "id": "agent-7"},
		"params": {"cart_id": "cart-1"}
	}`)

	req, err := ParseRequest(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := req.Envelope
	if env.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", env.RequestID)
	}
	if env.Actor.Type != domain.ActorTypeAgent || env.Actor.ID != "agent-7" {
		t.Fatalf("unexpected actor %+v", env.Actor)
	}
	if env.Locale != "en-US" {
		t.Fatalf("expected default locale en-US, got %q", env.Locale)
	}
	if env.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", env.Currency)
	}
	if env.Timezone != "UTC" {
		t.Fatalf("expected default timezone UTC, got %q", env.Timezone)
	}
	if string(req.Params) != `{"cart_id": "cart-1"}` {
		t.Fatalf("params must pass through untouched, got %s", req.Params)
	}
}

func TestParseRequestNormalizesFields(t *testing.T) {
	body := []byte(`{
		"request_id": "  req-2  ",
		"actor": {"type": "user", "id": " user-1 "},
		"locale": "ja-jp",
		"currency": "jpy",
		"dry_run": true,
		"idempotency_key": " key-1 "
	}`)

	req, err := ParseRequest(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := req.Envelope
	if env.RequestID != "req-2" {
		t.Fatalf("expected trimmed request id, got %q", env.RequestID)
	}
	if env.Currency != "JPY" {
		t.Fatalf("expected uppercased currency, got %q", env.Currency)
	}
	if env.Locale != "ja-JP" {
		t.Fatalf("expected canonical locale ja-JP, got %q", env.Locale)
	}
	if !env.DryRun {
		t.Fatal("expected dry_run carried through")
	}
	if env.IdempotencyKey != "key-1" {
		t.Fatalf("expected trimmed idempotency key, got %q", env.IdempotencyKey)
	}
	if string(req.Params) != "{}" {
		t.Fatalf("expected empty params object, got %s", req.Params)
	}
}

func TestParseRequestValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing request_id", `{"actor": {"type": "user", "id": "u"}}`, "request_id"},
		{"missing actor", `{"request_id": "r"}`, "actor"},
		{"missing actor id", `{"request_id": "r", "actor": {"type": "user"}}`, "actor.id"},
		{"bad actor type", `{"request_id": "r", "actor": {"type": "robot", "id": "u"}}`, "actor.type"},
		{"bad currency", `{"request_id": "r", "actor": {"type": "user", "id": "u"}, "currency": "DOLLARS"}`, "currency"},
		{"bad locale", `{"request_id": "r", "actor": {"type": "user", "id": "u"}, "locale": "!!"}`, "locale"},
		{"long idempotency key", `{"request_id": "r", "actor": {"type": "user", "id": "u"}, "idempotency_key": "` + strings.Repeat("k", 129) + `"}`, "idempotency_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q flagged, got %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestSubjectIDResolution(t *testing.T) {
	env := RequestEnvelope{UserID: "user-1", Actor: domain.Actor{ID: "agent-1"}}
	if got := env.SubjectID(); got != "user-1" {
		t.Fatalf("expected user id preferred, got %q", got)
	}
	env.UserID = ""
	if got := env.SubjectID(); got != "agent-1" {
		t.Fatalf("expected actor fallback, got %q", got)
	}
	env.Actor.ID = ""
	if got := env.SubjectID(); got != "anonymous" {
		t.Fatalf("expected anonymous fallback, got %q", got)
	}
}
