package catalog

import (
	"context"
	"errors"
	"testing"
)

func seedProducts() []Product {
	return []Product{
		{ID: 3, GarmentType: "Blusa", Color: "Azul", Size: "M", Category: "Casual", Description: "Blusa de algodón"},
		{ID: 1, GarmentType: "Camisa", Color: "Blanco", Size: "L", Category: "Formal", Description: "Camisa manga larga"},
		{ID: 2, GarmentType: "Blusa", Color: "Rojo", Size: "S", Category: "Fiesta", Description: "Blusa con volados"},
		{ID: 4, GarmentType: "Pantalón", Color: "Negro", Size: "42", Category: "Formal", Description: "Pantalón de vestir"},
	}
}

func TestMemoryRepositorySearch(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository(seedProducts()...)
	got, err := repo.Search(context.Background(), NormalizeQuery("blusas"), 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("unexpected search result: %#v", got)
	}

	got, err = repo.Search(context.Background(), NormalizeQuery("pantalones negros"), 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 4 {
		t.Fatalf("unexpected accent-folded result: %#v", got)
	}
}

func TestMemoryRepositorySearchPaging(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository(seedProducts()...)
	page, err := repo.Search(context.Background(), "", 2, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 4 {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestMemoryRepositorySearchEmptyIsNotError(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository(seedProducts()...)
	got, err := repo.Search(context.Background(), "campera", 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMemoryRepositoryGet(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository(seedProducts()...)
	p, err := repo.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.GarmentType != "Pantalón" {
		t.Fatalf("unexpected product: %#v", p)
	}

	if _, err := repo.Get(context.Background(), 99); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.Get(context.Background(), 0); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
}
