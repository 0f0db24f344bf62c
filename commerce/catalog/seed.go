package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON array of products, the seed format for the
// in-memory catalog.
func LoadFile(path string) ([]Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	seen := make(map[int64]struct{}, len(products))
	for _, p := range products {
		if p.ID <= 0 {
			return nil, fmt.Errorf("%w: %d in %s", ErrInvalidProduct, p.ID, path)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d in %s", p.ID, path)
		}
		seen[p.ID] = struct{}{}
	}
	return products, nil
}
