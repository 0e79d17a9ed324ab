package domain

import (
	"time"
)

// ActorType distinguishes the kinds of principals that may call the gateway.
type ActorType string

const (
	// ActorTypeUser identifies a human end user acting on their own behalf.
	ActorTypeUser ActorType = "user"
	// ActorTypeAgent identifies an automated agent acting for a user.
	ActorTypeAgent ActorType = "agent"
	// ActorTypeSystem identifies internal system-to-system calls.
	ActorTypeSystem ActorType = "system"
)

// Actor identifies the principal responsible for a request.
type Actor struct {
	Type ActorType
	ID   string
}

// CartStatus enumerates the cart lifecycle states.
type CartStatus string

const (
	// CartStatusActive indicates the cart accepts item mutations.
	CartStatusActive CartStatus = "active"
	// CartStatusCheckout indicates a draft order was created from the cart; the cart is frozen.
	CartStatusCheckout CartStatus = "checkout"
	// CartStatusAbandoned indicates the cart was discarded without checkout.
	CartStatusAbandoned CartStatus = "abandoned"
)

// Cart aggregates the mutable shopping cart state for an actor.
type Cart struct {
	ID        string
	UserID    string
	Actor     Actor
	Status    CartStatus
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single SKU entry within a cart. UnitPrice is in minor currency units.
type CartItem struct {
	SKUID           string
	OfferID         string
	Title           string
	Quantity        int
	UnitPrice       int64
	Currency        string
	SelectedOptions map[string]string
	AddedAt         time.Time
}

// DraftOrderStatus enumerates valid lifecycle states for draft orders.
type DraftOrderStatus string

const (
	// DraftOrderStatusPending indicates the draft order awaits user confirmation.
	DraftOrderStatusPending DraftOrderStatus = "pending"
	// DraftOrderStatusExpired indicates the quote lapsed before confirmation.
	DraftOrderStatusExpired DraftOrderStatus = "expired"
	// DraftOrderStatusConfirmed indicates the user confirmed and payment is handled downstream.
	DraftOrderStatusConfirmed DraftOrderStatus = "confirmed"
)

// Consents records the acknowledgements the user granted before checkout.
type Consents struct {
	TaxEstimateAck  bool
	ReturnPolicyAck bool
	ComplianceAck   bool
}

// OrderBreakdown holds the frozen price quote in minor currency units.
// PayableAmount equals Subtotal + ShippingCost + TaxEstimate at creation time
// and is never recomputed afterwards.
type OrderBreakdown struct {
	Subtotal      int64
	ShippingCost  int64
	TaxEstimate   int64
	PayableAmount int64
	Currency      string
}

// ConfirmationItem describes a disclosure the user must acknowledge before payment.
type ConfirmationItem struct {
	Type        string
	Title       string
	Description string
	RequiresAck bool
}

// DraftOrder is a frozen, unpaid price quote awaiting explicit confirmation.
type DraftOrder struct {
	ID                 string
	UserID             string
	Actor              Actor
	CartID             string
	Status             DraftOrderStatus
	Items              []CartItem
	DestinationCountry string
	AddressID          string
	ShippingOptionID   string
	Consents           Consents
	Breakdown          OrderBreakdown
	ConfirmationItems  []ConfirmationItem
	IdempotencyKey     string
	EvidenceSnapshotID string
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

// RuleSeverity grades the weight of a compliance finding.
type RuleSeverity string

const (
	// SeverityError blocks the item from shipping when triggered.
	SeverityError RuleSeverity = "error"
	// SeverityWarning annotates the verdict without blocking.
	SeverityWarning RuleSeverity = "warning"
	// SeverityInfo carries advisory findings only.
	SeverityInfo RuleSeverity = "info"
)

// RuleApplicability scopes a rule to categories and destination countries.
// "*" matches everything; a category ending in "*" matches by prefix.
type RuleApplicability struct {
	Categories []string
	Countries  []string
}

// ConditionKind enumerates the supported rule predicates.
type ConditionKind string

const (
	// ConditionExists matches when the named attribute is present.
	ConditionExists ConditionKind = "exists"
	// ConditionEquals matches when the attribute equals the expected value.
	ConditionEquals ConditionKind = "equals"
	// ConditionIn matches when the attribute value is in the candidate set.
	ConditionIn ConditionKind = "in"
	// ConditionNotIn matches when the attribute value is absent from the candidate set.
	ConditionNotIn ConditionKind = "not_in"
	// ConditionGreaterThan matches when the numeric attribute exceeds the threshold.
	ConditionGreaterThan ConditionKind = "gt"
	// ConditionRiskTag matches when the item carries the named risk tag.
	ConditionRiskTag ConditionKind = "risk_tag"
	// ConditionBattery is shorthand for the battery_included risk tag.
	ConditionBattery ConditionKind = "battery"
	// ConditionLiquid is shorthand for the liquid_content risk tag.
	ConditionLiquid ConditionKind = "liquid"
	// ConditionMagnet is shorthand for the magnet_included risk tag.
	ConditionMagnet ConditionKind = "magnet"
	// ConditionSmallParts is shorthand for the small_parts risk tag.
	ConditionSmallParts ConditionKind = "small_parts"
)

// RuleCondition is the typed predicate evaluated against item attributes and risk tags.
type RuleCondition struct {
	Kind      ConditionKind
	Attribute string
	Value     string
	Values    []string
	Threshold float64
	RiskTag   string
}

// ActionKind enumerates the supported rule effects.
type ActionKind string

const (
	// ActionRequireCertification demands a named certification on the item.
	ActionRequireCertification ActionKind = "require_certification"
	// ActionRestrictShipping constrains the shipping methods usable for the item.
	ActionRestrictShipping ActionKind = "restrict_shipping"
	// ActionAddWarning appends an advisory message to the verdict.
	ActionAddWarning ActionKind = "add_warning"
	// ActionRequireDocument demands an accompanying document.
	ActionRequireDocument ActionKind = "require_document"
)

// RuleAction is the typed effect applied when a rule's condition holds.
type RuleAction struct {
	Kind           ActionKind
	Certification  string
	Document       string
	Message        string
	AllowedMethods []string
	BlockedMethods []string
}

// ComplianceRule is a priority-ordered predicate/action pair restricting or
// annotating whether an item may ship to a destination. Rules are read-only
// configuration; the engine never mutates them.
type ComplianceRule struct {
	ID        string
	Name      map[string]string
	Priority  int
	AppliesTo RuleApplicability
	Condition RuleCondition
	Action    RuleAction
	Severity  RuleSeverity
}

// ComplianceIssue records a single triggered finding.
type ComplianceIssue struct {
	RuleID   string
	Code     string
	Message  string
	Severity RuleSeverity
}

// ShippingRestriction records allowed/blocked method lists contributed by a rule.
type ShippingRestriction struct {
	RuleID         string
	AllowedMethods []string
	BlockedMethods []string
}

// ComplianceVerdict is the deterministic output of evaluating a ruleset against one item.
type ComplianceVerdict struct {
	Allowed              bool
	Issues               []ComplianceIssue
	RequiredDocs         []string
	Warnings             []string
	ShippingRestrictions []ShippingRestriction
	RulesetVersion       string
}

// CatalogItem is the read-only item projection consumed by compliance and pricing.
type CatalogItem struct {
	SKUID          string
	OfferID        string
	Title          string
	CategoryID     string
	CategoryPath   []string
	UnitPrice      int64
	Currency       string
	Attributes     map[string]string
	RiskTags       []string
	Certifications []string
	Stock          int
}

// ToolCallRecord captures one upstream tool invocation inside an evidence snapshot.
type ToolCallRecord struct {
	Tool         string
	Request      map[string]any
	Response     map[string]any
	ResponseHash string
	CalledAt     time.Time
	LatencyMS    int64
}

// EvidenceSnapshot is a hashed, immutable record of the tool calls and context
// that justified a decision. Binding to a draft order is the only mutation
// applied after creation.
type EvidenceSnapshot struct {
	ID           string
	MissionID    string
	UserID       string
	DraftOrderID string
	Context      map[string]any
	ToolCalls    []ToolCallRecord
	Metadata     map[string]any
	ContentHash  string
	CreatedAt    time.Time
}

// AuditRecord stores one normalized tool-call audit entry.
type AuditRecord struct {
	ID        string
	RequestID string
	Actor     Actor
	Route     string
	Outcome   string
	ErrorCode string
	Duplicate bool
	DryRun    bool
	LatencyMS int64
	CreatedAt time.Time
}
