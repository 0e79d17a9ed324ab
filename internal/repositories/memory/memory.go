// Package memory offers map-backed repositories for local development and
// tests. All repositories share one lock so cross-entity operations, like
// creating a draft order while freezing its cart, stay atomic.
package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type store struct {
	mu        sync.Mutex
	carts     map[string]domain.Cart
	drafts    map[string]domain.DraftOrder
	evidence  map[string]domain.EvidenceSnapshot
	audits    map[string]domain.AuditRecord
	auditList []string
	catalog   map[string]domain.CatalogItem
}

// Registry wires the shared in-memory store behind the repositories.Registry contract.
type Registry struct {
	store *store
	rules repositories.ComplianceRuleRepository
}

// NewRegistry constructs an empty in-memory registry. Compliance rules are
// file-sourced configuration, so the rule repository is injected.
func NewRegistry(rules repositories.ComplianceRuleRepository) (*Registry, error) {
	if rules == nil {
		return nil, fmt.Errorf("memory registry requires compliance rule repository")
	}
	return &Registry{
		store: &store{
			carts:    make(map[string]domain.Cart),
			drafts:   make(map[string]domain.DraftOrder),
			evidence: make(map[string]domain.EvidenceSnapshot),
			audits:   make(map[string]domain.AuditRecord),
			catalog:  make(map[string]domain.CatalogItem),
		},
		rules: rules,
	}, nil
}

// Close is a no-op for the in-memory registry.
func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Carts() repositories.CartRepository                     { return &cartRepository{store: r.store} }
func (r *Registry) DraftOrders() repositories.DraftOrderRepository         { return &draftOrderRepository{store: r.store} }
func (r *Registry) ComplianceRules() repositories.ComplianceRuleRepository { return r.rules }
func (r *Registry) Evidence() repositories.EvidenceRepository              { return &evidenceRepository{store: r.store} }
func (r *Registry) AuditLogs() repositories.AuditLogRepository             { return &auditLogRepository{store: r.store} }
func (r *Registry) Catalog() repositories.CatalogRepository                { return &catalogRepository{store: r.store} }
func (r *Registry) Health() repositories.HealthRepository                  { return healthRepository{} }

// SeedCatalog loads catalog items for local mode and tests.
func (r *Registry) SeedCatalog(items ...domain.CatalogItem) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, item := range items {
		if item.SKUID == "" {
			continue
		}
		r.store.catalog[item.SKUID] = item
	}
}

type healthRepository struct{}

func (healthRepository) Ping(context.Context) error { return nil }

var _ repositories.Registry = (*Registry)(nil)

type repoError struct {
	op       string
	message  string
	notFound bool
	conflict bool
}

func (e *repoError) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.message)
	}
	return e.message
}

func (e *repoError) IsNotFound() bool    { return e != nil && e.notFound }
func (e *repoError) IsConflict() bool    { return e != nil && e.conflict }
func (e *repoError) IsUnavailable() bool { return false }

func notFoundError(op, message string) error {
	return &repoError{op: op, message: message, notFound: true}
}

func conflictError(op, message string) error {
	return &repoError{op: op, message: message, conflict: true}
}
