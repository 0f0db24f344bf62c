package cart

import (
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

const (
	TierSmall  = 50
	TierMedium = 100
)

// PricePerUnit resolves the tier price from a single line's quantity.
func PricePerUnit(p catalogx.Product, qty int) float64 {
	switch {
	case qty <= TierSmall:
		return p.Price50
	case qty <= TierMedium:
		return p.Price100
	default:
		return p.Price200
	}
}

func LineTotal(p catalogx.Product, qty int) float64 {
	return float64(qty) * PricePerUnit(p, qty)
}

// Total sums line totals. Lines whose product is missing from products are
// skipped.
func Total(c *Cart, products map[int64]catalogx.Product) float64 {
	if c == nil {
		return 0
	}
	var sum float64
	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		sum += LineTotal(p, it.Quantity)
	}
	return sum
}
