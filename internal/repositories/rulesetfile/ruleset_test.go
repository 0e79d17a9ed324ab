package rulesetfile

import (
	"context"
	"strings"
	"testing"

	domain "github.com/agentmall/gateway/internal/domain"
)

const validRuleset = `{
  "version": "2026-01-01",
  "rules": [
    {
      "id": "b-second",
      "priority": 10,
      "applies_to": {"categories": ["*"], "countries": ["de"]},
      "condition": {"kind": "risk_tag", "risk_tag": "lithium_battery"},
      "action": {"kind": "add_warning", "message": "careful"},
      "severity": "warning"
    },
    {
      "id": "a-first",
      "priority": 10,
      "applies_to": {"categories": ["electronics.*"], "countries": ["*"]},
      "condition": {"kind": "exists", "attribute": "battery_type"},
      "action": {"kind": "require_document", "document": "msds"},
      "severity": "error"
    },
    {
      "id": "c-last",
      "priority": 5,
      "applies_to": {"categories": ["*"], "countries": ["*"]},
      "condition": {"kind": "gt", "attribute": "capacity_wh", "threshold": 100},
      "action": {"kind": "require_certification", "certification": "UN38.3"},
      "severity": "error"
    }
  ]
}`

func TestNewFromBytesOrdersRules(t *testing.T) {
	repo, err := NewFromBytes([]byte(validRuleset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}

	gotOrder := []string{rules[0].ID, rules[1].ID, rules[2].ID}
	wantOrder := []string{"c-last", "a-first", "b-second"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("expected order %v, got %v", wantOrder, gotOrder)
		}
	}

	if rules[2].AppliesTo.Countries[0] != "DE" {
		t.Fatalf("expected countries uppercased, got %v", rules[2].AppliesTo.Countries)
	}

	version, err := repo.Version(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "2026-01-01" {
		t.Fatalf("expected declared version, got %q", version)
	}
}

func TestNewFromBytesDerivesVersionFromContent(t *testing.T) {
	doc := strings.Replace(validRuleset, `"version": "2026-01-01",`, "", 1)
	repo, err := NewFromBytes([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	version, err := repo.Version(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(version) != 12 {
		t.Fatalf("expected 12-char content hash version, got %q", version)
	}
}

func TestNewFromBytesAcceptsRiskTagShorthands(t *testing.T) {
	doc := `{"rules": [
		{"id": "battery", "priority": 1, "applies_to": {}, "condition": {"kind": "battery"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"},
		{"id": "liquid", "priority": 2, "applies_to": {}, "condition": {"kind": "liquid"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"},
		{"id": "magnet", "priority": 3, "applies_to": {}, "condition": {"kind": "magnet"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"},
		{"id": "small", "priority": 4, "applies_to": {}, "condition": {"kind": "small_parts"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"}
	]}`
	repo, err := NewFromBytes([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rules, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	if rules[0].Condition.Kind != domain.ConditionBattery {
		t.Fatalf("expected battery shorthand preserved, got %q", rules[0].Condition.Kind)
	}
}

func TestNewFromBytesRejectsSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not an object", `[]`},
		{"missing rules", `{"version": "1"}`},
		{"rule missing severity", `{"rules": [{"id": "r", "priority": 1, "applies_to": {}, "condition": {"kind": "exists"}, "action": {"kind": "add_warning"}}]}`},
		{"bad condition kind", `{"rules": [{"id": "r", "priority": 1, "applies_to": {}, "condition": {"kind": "matches"}, "action": {"kind": "add_warning"}, "severity": "info"}]}`},
		{"bad action kind", `{"rules": [{"id": "r", "priority": 1, "applies_to": {}, "condition": {"kind": "exists"}, "action": {"kind": "block"}, "severity": "info"}]}`},
		{"negative priority", `{"rules": [{"id": "r", "priority": -1, "applies_to": {}, "condition": {"kind": "exists"}, "action": {"kind": "add_warning"}, "severity": "info"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFromBytes([]byte(tc.doc)); err == nil {
				t.Fatal("expected schema rejection")
			}
		})
	}
}

func TestNewFromBytesRejectsDuplicateIDs(t *testing.T) {
	doc := `{"rules": [
		{"id": "dup", "priority": 1, "applies_to": {}, "condition": {"kind": "exists", "attribute": "a"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"},
		{"id": "dup", "priority": 2, "applies_to": {}, "condition": {"kind": "exists", "attribute": "b"}, "action": {"kind": "add_warning", "message": "m"}, "severity": "info"}
	]}`
	if _, err := NewFromBytes([]byte(doc)); err == nil {
		t.Fatal("expected duplicate id rejection")
	}
}

func TestShippedRulesetLoads(t *testing.T) {
	repo, err := NewFromFile("../../../rulesets/compliance.json")
	if err != nil {
		t.Fatalf("bundled ruleset must validate: %v", err)
	}
	rules, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("bundled ruleset must not be empty")
	}
	for i := 1; i < len(rules); i++ {
		prev, cur := rules[i-1], rules[i]
		if prev.Priority > cur.Priority || (prev.Priority == cur.Priority && prev.ID > cur.ID) {
			t.Fatalf("rules out of order at %d: %s before %s", i, prev.ID, cur.ID)
		}
	}
}

func TestListActiveReturnsCopy(t *testing.T) {
	repo, err := NewFromBytes([]byte(validRuleset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := repo.ListActive(context.Background())
	first[0].Severity = domain.SeverityInfo
	first[0].ID = "mutated"

	second, _ := repo.ListActive(context.Background())
	if second[0].ID == "mutated" {
		t.Fatal("callers must not be able to mutate the shared rule set")
	}
}
