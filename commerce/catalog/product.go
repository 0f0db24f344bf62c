package catalog

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("product id must be positive")
)

// Product is read-only reference data owned by the catalog.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p" json:"-"`

	ID            int64   `bun:"id,pk,autoincrement" json:"id"`
	GarmentType   string  `bun:"garment_type,notnull" json:"garment_type"`
	Size          string  `bun:"size,notnull" json:"size"`
	Color         string  `bun:"color,notnull" json:"color"`
	StockQuantity int     `bun:"stock_quantity,notnull" json:"stock_quantity"`
	Price50       float64 `bun:"price_50,notnull" json:"price_50"`
	Price100      float64 `bun:"price_100,notnull" json:"price_100"`
	Price200      float64 `bun:"price_200,notnull" json:"price_200"`
	Available     bool    `bun:"available,notnull,default:true" json:"available"`
	Category      string  `bun:"category,notnull" json:"category"`
	Description   string  `bun:"description,notnull" json:"description"`
}

// Repository is the read contract over the product catalog. Search expects
// a query already passed through NormalizeQuery.
type Repository interface {
	Search(ctx context.Context, query string, limit, offset int) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
}
