package cart

import (
	"testing"

	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

func TestMergeAddAccumulates(t *testing.T) {
	t.Parallel()

	c := New("u1")
	c.MergeAdd(7, 3)
	c.MergeAdd(7, 2)

	if got := c.Quantity(7); got != 5 {
		t.Fatalf("Quantity() = %d, want 5", got)
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected one line per product, got %d", len(c.Items))
	}
}

func TestMergeAddRemovesAtZero(t *testing.T) {
	t.Parallel()

	c := New("u1")
	c.MergeAdd(7, 3)
	c.MergeAdd(7, -3)
	if len(c.Items) != 0 {
		t.Fatalf("expected line removed, got %#v", c.Items)
	}

	c.MergeAdd(8, 2)
	c.MergeAdd(8, -10)
	if len(c.Items) != 0 {
		t.Fatalf("expected line removed below zero, got %#v", c.Items)
	}
}

func TestMergeAddNonPositiveOnMissingIsNoop(t *testing.T) {
	t.Parallel()

	c := New("u1")
	c.MergeAdd(7, 0)
	c.MergeAdd(7, -2)
	if len(c.Items) != 0 {
		t.Fatalf("expected no lines, got %#v", c.Items)
	}
}

func TestSetAbsolute(t *testing.T) {
	t.Parallel()

	c := New("u1")
	c.SetAbsolute(7, 40)
	if got := c.Quantity(7); got != 40 {
		t.Fatalf("Quantity() = %d, want 40", got)
	}

	c.SetAbsolute(7, 120)
	if got := c.Quantity(7); got != 120 {
		t.Fatalf("SetAbsolute must replace, got %d", got)
	}

	c.SetAbsolute(7, 0)
	if len(c.Items) != 0 {
		t.Fatalf("SetAbsolute(0) must remove, got %#v", c.Items)
	}

	c.SetAbsolute(9, 0)
	if len(c.Items) != 0 {
		t.Fatalf("SetAbsolute(0) on missing line must be a no-op, got %#v", c.Items)
	}
}

func TestPricePerUnitTierBoundaries(t *testing.T) {
	t.Parallel()

	p := catalogx.Product{ID: 1, Price50: 10, Price100: 8, Price200: 6}
	cases := []struct {
		qty  int
		want float64
	}{
		{1, 10},
		{50, 10},
		{51, 8},
		{100, 8},
		{101, 6},
		{500, 6},
	}
	for _, tc := range cases {
		if got := PricePerUnit(p, tc.qty); got != tc.want {
			t.Errorf("PricePerUnit(%d) = %v, want %v", tc.qty, got, tc.want)
		}
	}
}

func TestTotalUsesPerLineTier(t *testing.T) {
	t.Parallel()

	products := map[int64]catalogx.Product{
		1: {ID: 1, Price50: 10, Price100: 8, Price200: 6},
		2: {ID: 2, Price50: 20, Price100: 15, Price200: 12},
	}
	c := New("u1")
	c.SetAbsolute(1, 40)
	c.SetAbsolute(2, 60)

	// 40*10 + 60*15; the aggregate of 100 units must not change either tier.
	if got := Total(c, products); got != 400+900 {
		t.Fatalf("Total() = %v, want %v", got, 1300)
	}
	if got := LineTotal(products[2], 101); got != 101*12 {
		t.Fatalf("LineTotal() = %v", got)
	}
}
