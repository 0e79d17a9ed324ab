package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/repositories"
)

const catalogCollection = "catalog_items"

// CatalogRepository serves read-only catalog projections from Firestore.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[catalogDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[catalogDocument](provider, catalogCollection, nil, nil)
	return &CatalogRepository{base: base}, nil
}

// FindBySKU resolves a single catalog item by SKU.
func (r *CatalogRepository) FindBySKU(ctx context.Context, skuID string) (domain.CatalogItem, error) {
	if r == nil || r.base == nil {
		return domain.CatalogItem{}, errors.New("catalog repository not initialised")
	}
	sku := strings.TrimSpace(skuID)
	if sku == "" {
		return domain.CatalogItem{}, errors.New("catalog repository: sku id is required")
	}

	doc, err := r.base.Get(ctx, sku)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return decodeCatalogItem(doc.ID, doc.Data), nil
}

// FindBySKUs resolves multiple SKUs, omitting those that do not exist.
func (r *CatalogRepository) FindBySKUs(ctx context.Context, skuIDs []string) (map[string]domain.CatalogItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}

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

func decodeCatalogItem(id string, doc catalogDocument) domain.CatalogItem {
	return domain.CatalogItem{
		SKUID:          id,
		OfferID:        doc.OfferID,
		Title:          doc.Title,
		CategoryID:     doc.CategoryID,
		CategoryPath:   doc.CategoryPath,
		UnitPrice:      doc.UnitPrice,
		Currency:       doc.Currency,
		Attributes:     doc.Attributes,
		RiskTags:       doc.RiskTags,
		Certifications: doc.Certifications,
		Stock:          doc.Stock,
	}
}

type catalogDocument struct {
	OfferID        string            `firestore:"offer_id,omitempty"`
	Title          string            `firestore:"title"`
	CategoryID     string            `firestore:"category_id"`
	CategoryPath   []string          `firestore:"category_path,omitempty"`
	UnitPrice      int64             `firestore:"unit_price"`
	Currency       string            `firestore:"currency"`
	Attributes     map[string]string `firestore:"attributes,omitempty"`
	RiskTags       []string          `firestore:"risk_tags,omitempty"`
	Certifications []string          `firestore:"certifications,omitempty"`
	Stock          int               `firestore:"stock"`
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
