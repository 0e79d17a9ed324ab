package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/repositories"
)

// Registry wires every Firestore-backed repository behind the repositories.Registry contract.
// Compliance rules are file-sourced configuration, so the rule repository is injected.
type Registry struct {
	provider *pfirestore.Provider

	carts       *CartRepository
	draftOrders *DraftOrderRepository
	evidence    *EvidenceRepository
	auditLogs   *AuditLogRepository
	catalog     *CatalogRepository
	rules       repositories.ComplianceRuleRepository
	health      *healthRepository
}

// NewRegistry constructs the registry and all repositories it exposes.
func NewRegistry(provider *pfirestore.Provider, rules repositories.ComplianceRuleRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if rules == nil {
		return nil, errors.New("registry requires compliance rule repository")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	draftOrders, err := NewDraftOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	evidence, err := NewEvidenceRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:    provider,
		carts:       carts,
		draftOrders: draftOrders,
		evidence:    evidence,
		auditLogs:   auditLogs,
		catalog:     catalog,
		rules:       rules,
		health:      &healthRepository{provider: provider},
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository                     { return r.carts }
func (r *Registry) DraftOrders() repositories.DraftOrderRepository         { return r.draftOrders }
func (r *Registry) ComplianceRules() repositories.ComplianceRuleRepository { return r.rules }
func (r *Registry) Evidence() repositories.EvidenceRepository              { return r.evidence }
func (r *Registry) AuditLogs() repositories.AuditLogRepository             { return r.auditLogs }
func (r *Registry) Catalog() repositories.CatalogRepository                { return r.catalog }
func (r *Registry) Health() repositories.HealthRepository                  { return r.health }

type healthRepository struct {
	provider *pfirestore.Provider
}

// Ping verifies backend connectivity with a sentinel read. A missing document
// still proves the backend answered.
func (h *healthRepository) Ping(ctx context.Context) error {
	if h == nil || h.provider == nil {
		return errors.New("health repository not initialised")
	}
	client, err := h.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("health").Doc("probe").Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return pfirestore.WrapError("health.ping", err)
}

var _ repositories.Registry = (*Registry)(nil)
