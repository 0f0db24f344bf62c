package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// foldExpr mirrors Fold for the accented letters used in the catalog.
const foldExpr = "translate(lower(?), 'áéíóúüñ', 'aeiouun') LIKE ?"

var searchColumns = []string{"p.garment_type", "p.description", "p.category", "p.color"}

// BunRepository reads products from Postgres.
type BunRepository struct {
	db bun.IDB
}

var _ Repository = (*BunRepository)(nil)

func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

// CreateSchema creates the products table when it is missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*Product)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create products table: %w", err)
	}
	return nil
}

func (r *BunRepository) Search(ctx context.Context, query string, limit, offset int) ([]Product, error) {
	products := make([]Product, 0)
	q := r.db.NewSelect().Model(&products).OrderExpr("p.id ASC")

	for _, tok := range strings.Fields(query) {
		pattern := "%" + tok + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range searchColumns {
				q = q.WhereOr(foldExpr, bun.Ident(col), pattern)
			}
			return q
		})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

func (r *BunRepository) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrInvalidProduct
	}

	var p Product
	err := r.db.NewSelect().Model(&p).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product id=%d: %w", id, err)
	}
	return p, nil
}

// Upsert writes products keyed by id, replacing existing rows.
func (r *BunRepository) Upsert(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().
		Model(&products).
		On("CONFLICT (id) DO UPDATE").
		Set("garment_type = EXCLUDED.garment_type").
		Set("size = EXCLUDED.size").
		Set("color = EXCLUDED.color").
		Set("stock_quantity = EXCLUDED.stock_quantity").
		Set("price_50 = EXCLUDED.price_50").
		Set("price_100 = EXCLUDED.price_100").
		Set("price_200 = EXCLUDED.price_200").
		Set("available = EXCLUDED.available").
		Set("category = EXCLUDED.category").
		Set("description = EXCLUDED.description").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	return nil
}
