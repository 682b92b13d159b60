package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

const defaultPageSize = 12

// ProductLister pages through the catalog.
type ProductLister interface {
	ListProducts(ctx context.Context, q gateway.ProductQuery) (gateway.ProductPage, error)
}

// Listing is one catalog page as shown to shoppers.
type Listing struct {
	Category   string            `json:"category"`
	Products   []gateway.Product `json:"products"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	// Sample is set when the catalog could not be reached and placeholder
	// products are shown instead.
	Sample bool `json:"sample,omitempty"`
}

var sampleProducts = []gateway.Product{
	{Code: "1", Name: "Red Rose Bouquet", Price: decimal.RequireFromString("59.99"), Description: "A classic arrangement of 12 red roses, perfect for expressing your love."},
	{Code: "2", Name: "Mixed Spring Flowers", Price: decimal.RequireFromString("49.99"), Description: "A vibrant mix of seasonal flowers that will brighten any room."},
	{Code: "3", Name: "Lily Arrangement", Price: decimal.RequireFromString("69.99"), Description: "Elegant white lilies arranged beautifully in a glass vase."},
	{Code: "4", Name: "Sunflower Bouquet", Price: decimal.RequireFromString("39.99"), Description: "Cheerful sunflowers that bring sunshine to any occasion."},
}

// Catalog serves paginated product listings.
type Catalog struct {
	remote   ProductLister
	pageSize int
	logg     *logger.Logger
}

func NewCatalog(remote ProductLister, pageSize int, logg *logger.Logger) (*Catalog, error) {
	if remote == nil {
		return nil, fmt.Errorf("product lister required")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{remote: remote, pageSize: pageSize, logg: logg}, nil
}

// List returns page (1-based) of category. A failed listing yields the
// sample products rather than an error.
func (c *Catalog) List(ctx context.Context, category string, page int) Listing {
	category = strings.TrimSpace(category)
	if category == "" {
		category = "all"
	}
	if page < 1 {
		page = 1
	}

	result, err := c.remote.ListProducts(ctx, gateway.ProductQuery{
		Category: category,
		Count:    c.pageSize,
		Start:    (page-1)*c.pageSize + 1,
	})
	if err != nil {
		c.logg.Error(c.logg.WithField(ctx, "category", category), "product listing failed, serving samples", err)
		samples := make([]gateway.Product, len(sampleProducts))
		copy(samples, sampleProducts)
		return Listing{
			Category:   category,
			Products:   samples,
			Page:       1,
			PageSize:   c.pageSize,
			Total:      len(samples),
			TotalPages: 1,
			Sample:     true,
		}
	}

	total := result.Total
	if total == 0 {
		// Without a reported total the current page is all we know of.
		total = (page-1)*c.pageSize + len(result.Products)
	}
	return Listing{
		Category:   category,
		Products:   result.Products,
		Page:       page,
		PageSize:   c.pageSize,
		Total:      total,
		TotalPages: (total + c.pageSize - 1) / c.pageSize,
	}
}
