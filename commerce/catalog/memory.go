package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository serves a fixed product list from memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	products []Product
	index    []string
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository(products ...Product) *MemoryRepository {
	r := &MemoryRepository{}
	r.Replace(products)
	return r
}

// Replace swaps the whole catalog.
func (r *MemoryRepository) Replace(products []Product) {
	sorted := append([]Product(nil), products...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make([]string, len(sorted))
	for i, p := range sorted {
		index[i] = haystack(p)
	}

	r.mu.Lock()
	r.products = sorted
	r.index = index
	r.mu.Unlock()
}

func (r *MemoryRepository) Search(ctx context.Context, query string, limit, offset int) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := strings.Fields(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0)
	skipped := 0
	for i, p := range r.products {
		if !matchesAll(r.index[i], tokens) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	if id <= 0 {
		return Product{}, ErrInvalidProduct
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.products), func(i int) bool { return r.products[i].ID >= id })
	if i < len(r.products) && r.products[i].ID == id {
		return r.products[i], nil
	}
	return Product{}, ErrProductNotFound
}

func haystack(p Product) string {
	return Fold(strings.Join([]string{p.GarmentType, p.Description, p.Category, p.Color}, " "))
}

func matchesAll(text string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}
