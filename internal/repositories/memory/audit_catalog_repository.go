package memory

import (
	"context"
	"errors"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type auditLogRepository struct {
	store *store
}

func (r *auditLogRepository) Append(_ context.Context, record domain.AuditRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("audit log repository: record id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.audits[id]; !exists {
		r.store.auditList = append(r.store.auditList, id)
	}
	r.store.audits[id] = record
	return nil
}

func (r *auditLogRepository) ListByRequestID(_ context.Context, requestID string) ([]domain.AuditRecord, error) {
	rid := strings.TrimSpace(requestID)
	if rid == "" {
		return nil, errors.New("audit log repository: request id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var records []domain.AuditRecord
	for _, id := range r.store.auditList {
		record := r.store.audits[id]
		if record.RequestID == rid {
			records = append(records, record)
		}
	}
	return records, nil
}

type catalogRepository struct {
	store *store
}

func (r *catalogRepository) FindBySKU(_ context.Context, skuID string) (domain.CatalogItem, error) {
	sku := strings.TrimSpace(skuID)
	if sku == "" {
		return domain.CatalogItem{}, errors.New("catalog repository: sku id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.catalog[sku]
	if !ok {
		return domain.CatalogItem{}, notFoundError("catalog.find", "catalog item not found")
	}
	return item, nil
}

func (r *catalogRepository) FindBySKUs(ctx context.Context, skuIDs []string) (map[string]domain.CatalogItem, error) {
	items := make(map[string]domain.CatalogItem, len(skuIDs))
	for _, skuID := range skuIDs {
		item, err := r.FindBySKU(ctx, skuID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		items[item.SKUID] = item
	}
	return items, nil
}

var (
	_ repositories.AuditLogRepository = (*auditLogRepository)(nil)
	_ repositories.CatalogRepository  = (*catalogRepository)(nil)
)
