package memory

import domain "github.com/agentmall/gateway/internal/domain"

// DemoCatalog returns the items seeded in local mode. The set deliberately
// covers the interesting compliance surfaces: lithium batteries, small parts,
// and a plain item that triggers nothing.
func DemoCatalog() []domain.CatalogItem {
	return []domain.CatalogItem{
		{
			SKUID:        "sku-notebook-a5",
			OfferID:      "offer-notebook-a5",
			Title:        "A5 dotted notebook",
			CategoryID:   "stationery.notebooks",
			CategoryPath: []string{"stationery", "stationery.notebooks"},
			UnitPrice:    1299,
			Currency:     "USD",
			Attributes:   map[string]string{"paper_weight_gsm": "90"},
			Stock:        250,
		},
		{
			SKUID:        "sku-powerbank-20k",
			OfferID:      "offer-powerbank-20k",
			Title:        "20000mAh power bank",
			CategoryID:   "electronics.batteries",
			CategoryPath: []string{"electronics", "electronics.batteries"},
			UnitPrice:    4999,
			Currency:     "USD",
			Attributes: map[string]string{
				"battery_type":     "lithium_ion",
				"capacity_wh":      "74",
				"battery_included": "true",
			},
			RiskTags:       []string{"lithium_battery"},
			Certifications: []string{"UN38.3"},
			Stock:          40,
		},
		{
			SKUID:        "sku-blocks-mini",
			OfferID:      "offer-blocks-mini",
			Title:        "Mini building blocks set",
			CategoryID:   "toys.construction",
			CategoryPath: []string{"toys", "toys.construction"},
			UnitPrice:    2499,
			Currency:     "USD",
			Attributes: map[string]string{
				"age_grade":   "6",
				"small_parts": "true",
			},
			RiskTags: []string{"small_parts"},
			Stock:    120,
		},
		{
			SKUID:        "sku-ecig-kit",
			OfferID:      "offer-ecig-kit",
			Title:        "Vapor starter kit",
			CategoryID:   "electronics.vaping",
			CategoryPath: []string{"electronics", "electronics.vaping"},
			UnitPrice:    3499,
			Currency:     "USD",
			Attributes: map[string]string{
				"battery_type":   "lithium_ion",
				"age_restricted": "true",
			},
			RiskTags: []string{"lithium_battery", "age_restricted"},
			Stock:    15,
		},
	}
}
