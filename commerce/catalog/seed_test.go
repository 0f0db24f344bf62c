package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeSeed(t, `[{"id":1,"garment_type":"Blusa","color":"Azul","size":"M","price_50":100,"price_100":90,"price_200":80,"available":true,"category":"Casual"}]`)
	products, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(products) != 1 || products[0].GarmentType != "Blusa" || products[0].Price100 != 90 {
		t.Fatalf("unexpected products: %#v", products)
	}
}

func TestLoadFileRejectsBadIDs(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(writeSeed(t, `[{"id":0}]`)); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	if _, err := LoadFile(writeSeed(t, `[{"id":2},{"id":2}]`)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
