// Package rulesetfile loads the compliance rule set from a JSON document.
// Rules are configuration, not data: they are read once at startup, validated
// against a schema, and served immutably for the process lifetime.
package rulesetfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

// Repository serves a validated, priority-ordered rule set loaded from disk.
type Repository struct {
	version string
	rules   []domain.ComplianceRule
}

// NewFromFile reads, validates, and indexes the rule set at path.
func NewFromFile(path string) (*Repository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulesetfile: read %s: %w", path, err)
	}
	return NewFromBytes(raw)
}

// NewFromBytes validates and indexes a rule set document.
func NewFromBytes(raw []byte) (*Repository, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var file rulesetFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("rulesetfile: decode: %w", err)
	}

	rules := make([]domain.ComplianceRule, 0, len(file.Rules))
	seen := make(map[string]struct{}, len(file.Rules))
	for _, entry := range file.Rules {
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("rulesetfile: duplicate rule id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		rule, err := entry.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	// Priority ascending, ties broken by rule ID, fixed at load time so
	// every evaluation sees the same order.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	version := strings.TrimSpace(file.Version)
	if version == "" {
		sum := sha256.Sum256(raw)
		version = hex.EncodeToString(sum[:6])
	}

	return &Repository{version: version, rules: rules}, nil
}

// ListActive returns the rules ordered by ascending priority, ties broken by rule ID.
func (r *Repository) ListActive(context.Context) ([]domain.ComplianceRule, error) {
	out := make([]domain.ComplianceRule, len(r.rules))
	copy(out, r.rules)
	return out, nil
}

// Version identifies the loaded rule set for evidence and verdict stamping.
func (r *Repository) Version(context.Context) (string, error) {
	return r.version, nil
}

func validateSchema(raw []byte) error {
	schema, err := jsonschema.CompileString("ruleset.schema.json", rulesetSchema)
	if err != nil {
		return fmt.Errorf("rulesetfile: compile schema: %w", err)
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("rulesetfile: parse: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("rulesetfile: invalid ruleset: %w", err)
	}
	return nil
}

type rulesetFile struct {
	Version string      `json:"version"`
	Rules   []ruleEntry `json:"rules"`
}

type ruleEntry struct {
	ID        string            `json:"id"`
	Name      map[string]string `json:"name"`
	Priority  int               `json:"priority"`
	AppliesTo appliesToEntry    `json:"applies_to"`
	Condition conditionEntry    `json:"condition"`
	Action    actionEntry       `json:"action"`
	Severity  string            `json:"severity"`
}

type appliesToEntry struct {
	Categories []string `json:"categories"`
	Countries  []string `json:"countries"`
}

type conditionEntry struct {
	Kind      string   `json:"kind"`
	Attribute string   `json:"attribute,omitempty"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	RiskTag   string   `json:"risk_tag,omitempty"`
}

type actionEntry struct {
	Kind           string   `json:"kind"`
	Certification  string   `json:"certification,omitempty"`
	Document       string   `json:"document,omitempty"`
	Message        string   `json:"message,omitempty"`
	AllowedMethods []string `json:"allowed_methods,omitempty"`
	BlockedMethods []string `json:"blocked_methods,omitempty"`
}

func (e ruleEntry) toDomain() (domain.ComplianceRule, error) {
	severity := domain.RuleSeverity(e.Severity)
	switch severity {
	case domain.SeverityError, domain.SeverityWarning, domain.SeverityInfo:
	default:
		return domain.ComplianceRule{}, fmt.Errorf("rulesetfile: rule %q has unknown severity %q", e.ID, e.Severity)
	}

	condition := domain.RuleCondition{
		Kind:      domain.ConditionKind(e.Condition.Kind),
		Attribute: e.Condition.Attribute,
		Value:     e.Condition.Value,
		Values:    e.Condition.Values,
		Threshold: e.Condition.Threshold,
		RiskTag:   e.Condition.RiskTag,
	}
	switch condition.Kind {
	case domain.ConditionExists, domain.ConditionEquals, domain.ConditionIn,
		domain.ConditionNotIn, domain.ConditionGreaterThan, domain.ConditionRiskTag,
		domain.ConditionBattery, domain.ConditionLiquid, domain.ConditionMagnet,
		domain.ConditionSmallParts:
	default:
		return domain.ComplianceRule{}, fmt.Errorf("rulesetfile: rule %q has unknown condition kind %q", e.ID, e.Condition.Kind)
	}

	action := domain.RuleAction{
		Kind:           domain.ActionKind(e.Action.Kind),
		Certification:  e.Action.Certification,
		Document:       e.Action.Document,
		Message:        e.Action.Message,
		AllowedMethods: e.Action.AllowedMethods,
		BlockedMethods: e.Action.BlockedMethods,
	}
	switch action.Kind {
	case domain.ActionRequireCertification, domain.ActionRestrictShipping,
		domain.ActionAddWarning, domain.ActionRequireDocument:
	default:
		return domain.ComplianceRule{}, fmt.Errorf("rulesetfile: rule %q has unknown action kind %q", e.ID, e.Action.Kind)
	}

	countries := make([]string, 0, len(e.AppliesTo.Countries))
	for _, country := range e.AppliesTo.Countries {
		countries = append(countries, strings.ToUpper(strings.TrimSpace(country)))
	}

	return domain.ComplianceRule{
		ID:       e.ID,
		Name:     e.Name,
		Priority: e.Priority,
		AppliesTo: domain.RuleApplicability{
			Categories: e.AppliesTo.Categories,
			Countries:  countries,
		},
		Condition: condition,
		Action:    action,
		Severity:  severity,
	}, nil
}

var _ repositories.ComplianceRuleRepository = (*Repository)(nil)
