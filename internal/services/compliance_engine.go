package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

var (
	errComplianceRulesRequired   = errors.New("compliance service: rule repository is required")
	errComplianceCatalogRequired = errors.New("compliance service: catalog repository is required")
)

// ErrComplianceInvalidInput indicates the caller supplied invalid input.
var ErrComplianceInvalidInput = errors.New("compliance service: invalid input")

// ErrComplianceItemNotFound indicates the SKU does not exist in the catalog.
var ErrComplianceItemNotFound = errors.New("compliance service: item not found")

// ErrComplianceUnavailable indicates rules or catalog could not be loaded.
var ErrComplianceUnavailable = errors.New("compliance service: unavailable")

// EvaluateRules runs every applicable rule against the item and folds the
// triggered actions into a single verdict. The shipping method, when given,
// decides whether a shipping restriction escalates into an issue. Rules must
// already be ordered by (priority asc, id asc); evaluation preserves that
// order so duplicate documents and warnings keep their first occurrence.
func EvaluateRules(rules []domain.ComplianceRule, item domain.CatalogItem, destinationCountry, shippingMethod, rulesetVersion string) domain.ComplianceVerdict {
	verdict := domain.ComplianceVerdict{
		Allowed:        true,
		RulesetVersion: rulesetVersion,
	}
	country := strings.ToUpper(strings.TrimSpace(destinationCountry))
	method := strings.TrimSpace(shippingMethod)

	seenDocs := map[string]bool{}
	seenWarnings := map[string]bool{}

	for _, rule := range rules {
		if !ruleApplies(rule.AppliesTo, item, country) {
			continue
		}
		if !conditionHolds(rule.Condition, item) {
			continue
		}
		applyRuleAction(&verdict, rule, item, method, seenDocs, seenWarnings)
	}

	for _, issue := range verdict.Issues {
		if issue.Severity == domain.SeverityError {
			verdict.Allowed = false
			break
		}
	}
	return verdict
}

func ruleApplies(scope domain.RuleApplicability, item domain.CatalogItem, country string) bool {
	return categoryMatches(scope.Categories, item) && countryMatches(scope.Countries, country)
}

func categoryMatches(patterns []string, item domain.CatalogItem) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(item.CategoryID, prefix) {
				return true
			}
			for _, segment := range item.CategoryPath {
				if strings.HasPrefix(segment, prefix) {
					return true
				}
			}
			continue
		}
		if pattern == item.CategoryID {
			return true
		}
		for _, segment := range item.CategoryPath {
			if segment == pattern {
				return true
			}
		}
	}
	return false
}

func countryMatches(countries []string, country string) bool {
	if len(countries) == 0 {
		return true
	}
	for _, c := range countries {
		if c == "*" || c == country {
			return true
		}
	}
	return false
}

func conditionHolds(cond domain.RuleCondition, item domain.CatalogItem) bool {
	switch cond.Kind {
	case domain.ConditionExists:
		_, ok := item.Attributes[cond.Attribute]
		return ok
	case domain.ConditionEquals:
		return item.Attributes[cond.Attribute] == cond.Value
	case domain.ConditionIn:
		value, ok := item.Attributes[cond.Attribute]
		if !ok {
			return false
		}
		for _, candidate := range cond.Values {
			if candidate == value {
				return true
			}
		}
		return false
	case domain.ConditionNotIn:
		value, ok := item.Attributes[cond.Attribute]
		if !ok {
			return true
		}
		for _, candidate := range cond.Values {
			if candidate == value {
				return false
			}
		}
		return true
	case domain.ConditionGreaterThan:
		raw, ok := item.Attributes[cond.Attribute]
		if !ok {
			return false
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}
		return value > cond.Threshold
	case domain.ConditionRiskTag:
		return hasRiskTag(item, cond.RiskTag)
	case domain.ConditionBattery:
		return hasRiskTag(item, "battery_included")
	case domain.ConditionLiquid:
		return hasRiskTag(item, "liquid_content")
	case domain.ConditionMagnet:
		return hasRiskTag(item, "magnet_included")
	case domain.ConditionSmallParts:
		return hasRiskTag(item, "small_parts")
	default:
		return false
	}
}

func hasRiskTag(item domain.CatalogItem, tag string) bool {
	for _, candidate := range item.RiskTags {
		if candidate == tag {
			return true
		}
	}
	return false
}

func applyRuleAction(verdict *domain.ComplianceVerdict, rule domain.ComplianceRule, item domain.CatalogItem, shippingMethod string, seenDocs, seenWarnings map[string]bool) {
	switch rule.Action.Kind {
	case domain.ActionRequireCertification:
		if hasCertification(item, rule.Action.Certification) {
			return
		}
		if cert := rule.Action.Certification; cert != "" && !seenDocs[cert] {
			seenDocs[cert] = true
			verdict.RequiredDocs = append(verdict.RequiredDocs, cert)
		}
		verdict.Issues = append(verdict.Issues, domain.ComplianceIssue{
			RuleID:   rule.ID,
			Code:     "missing_certification",
			Message:  ruleMessage(rule, "certification "+rule.Action.Certification+" is required"),
			Severity: rule.Severity,
		})
	case domain.ActionRestrictShipping:
		// The restriction is always surfaced; it becomes an issue only when
		// the caller actually requested a method the rule rules out.
		verdict.ShippingRestrictions = append(verdict.ShippingRestrictions, domain.ShippingRestriction{
			RuleID:         rule.ID,
			AllowedMethods: rule.Action.AllowedMethods,
			BlockedMethods: rule.Action.BlockedMethods,
		})
		if !methodBlocked(rule.Action, shippingMethod) {
			return
		}
		verdict.Issues = append(verdict.Issues, domain.ComplianceIssue{
			RuleID:   rule.ID,
			Code:     "shipping_restricted",
			Message:  ruleMessage(rule, "shipping method "+shippingMethod+" is not available for this item"),
			Severity: rule.Severity,
		})
	case domain.ActionAddWarning:
		message := ruleMessage(rule, rule.Action.Message)
		if message != "" && !seenWarnings[message] {
			seenWarnings[message] = true
			verdict.Warnings = append(verdict.Warnings, message)
		}
	case domain.ActionRequireDocument:
		if doc := rule.Action.Document; doc != "" && !seenDocs[doc] {
			seenDocs[doc] = true
			verdict.RequiredDocs = append(verdict.RequiredDocs, doc)
		}
		verdict.Issues = append(verdict.Issues, domain.ComplianceIssue{
			RuleID:   rule.ID,
			Code:     "document_required",
			Message:  ruleMessage(rule, "document "+rule.Action.Document+" is required"),
			Severity: rule.Severity,
		})
	}
}

// methodBlocked reports whether the requested method falls outside the
// rule's restriction. An unspecified method never blocks.
func methodBlocked(action domain.RuleAction, method string) bool {
	if method == "" {
		return false
	}
	for _, blocked := range action.BlockedMethods {
		if blocked == method {
			return true
		}
	}
	if len(action.AllowedMethods) == 0 {
		return false
	}
	for _, allowed := range action.AllowedMethods {
		if allowed == method {
			return false
		}
	}
	return true
}

func hasCertification(item domain.CatalogItem, certification string) bool {
	for _, c := range item.Certifications {
		if c == certification {
			return true
		}
	}
	return false
}

func ruleMessage(rule domain.ComplianceRule, fallback string) string {
	if msg := rule.Action.Message; msg != "" {
		return msg
	}
	if name, ok := rule.Name["en"]; ok && name != "" {
		return name
	}
	return fallback
}

// ComplianceServiceDeps wires the dependencies for compliance checks.
type ComplianceServiceDeps struct {
	Rules          repositories.ComplianceRuleRepository
	Catalog        repositories.CatalogRepository
	DefaultCountry string
}

type complianceService struct {
	rules          repositories.ComplianceRuleRepository
	catalog        repositories.CatalogRepository
	defaultCountry string
}

// NewComplianceService constructs a ComplianceService enforcing dependency validation.
func NewComplianceService(deps ComplianceServiceDeps) (ComplianceService, error) {
	if deps.Rules == nil {
		return nil, errComplianceRulesRequired
	}
	if deps.Catalog == nil {
		return nil, errComplianceCatalogRequired
	}
	country := strings.ToUpper(strings.TrimSpace(deps.DefaultCountry))
	if country == "" {
		country = "US"
	}
	return &complianceService{
		rules:          deps.Rules,
		catalog:        deps.Catalog,
		defaultCountry: country,
	}, nil
}

// CheckItem evaluates the active ruleset against one catalog item.
func (s *complianceService) CheckItem(ctx context.Context, cmd CheckItemCommand) (domain.ComplianceVerdict, error) {
	sku := strings.TrimSpace(cmd.SKUID)
	if sku == "" {
		return domain.ComplianceVerdict{}, ErrComplianceInvalidInput
	}
	country := strings.ToUpper(strings.TrimSpace(cmd.DestinationCountry))
	if country == "" {
		country = s.defaultCountry
	}

	item, err := s.catalog.FindBySKU(ctx, sku)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.ComplianceVerdict{}, ErrComplianceItemNotFound
		}
		return domain.ComplianceVerdict{}, ErrComplianceUnavailable
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return domain.ComplianceVerdict{}, ErrComplianceUnavailable
	}
	version, err := s.rules.Version(ctx)
	if err != nil {
		return domain.ComplianceVerdict{}, ErrComplianceUnavailable
	}

	return EvaluateRules(rules, item, country, cmd.ShippingMethod, version), nil
}

// RulesetVersion reports the identity of the loaded ruleset.
func (s *complianceService) RulesetVersion(ctx context.Context) (string, error) {
	version, err := s.rules.Version(ctx)
	if err != nil {
		return "", ErrComplianceUnavailable
	}
	return version, nil
}
