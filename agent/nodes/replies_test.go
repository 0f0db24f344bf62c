package orchestratornode

import (
	"fmt"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

func TestClarification(t *testing.T) {
	t.Parallel()

	got := Clarification(&contractx.ValidationError{Tool: contractx.ToolAddToCart, Missing: []string{"qty"}})
	if !strings.Contains(got, "la cantidad") {
		t.Fatalf("clarification does not name the missing field: %q", got)
	}

	got = Clarification(&contractx.ValidationError{Tool: contractx.ToolAddToCart, Missing: []string{"id", "qty"}})
	if !strings.Contains(got, "el ID del producto y la cantidad") {
		t.Fatalf("unexpected clarification: %q", got)
	}

	if Clarification(&contractx.ValidationError{Tool: "checkout", Unknown: true}) != unknownActionText {
		t.Fatal("unknown tool must use the generic clarification")
	}
}

func TestApology(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("%w: product", contractx.ErrNotFound)
	failure := fmt.Errorf("%w: db down", contractx.ErrUpstreamFailure)

	tests := []struct {
		name string
		call contractx.ToolInvocation
		err  error
		want string
	}{
		{
			name: "add not found",
			call: contractx.ToolInvocation{Name: contractx.ToolAddToCart, Args: map[string]any{"id": float64(99), "qty": float64(1)}},
			err:  notFound,
			want: "No encontré el producto con ID 99.",
		},
		{
			name: "detail not found",
			call: contractx.ToolInvocation{Name: contractx.ToolGetProductByID, Args: map[string]any{"id": float64(7)}},
			err:  notFound,
			want: "No encontré el producto con ID 7.",
		},
		{
			name: "search failure",
			call: contractx.ToolInvocation{Name: contractx.ToolSearchProducts},
			err:  failure,
			want: "Hubo un error buscando los productos. Probá de nuevo en un rato.",
		},
		{
			name: "update failure",
			call: contractx.ToolInvocation{Name: contractx.ToolUpdateCartItem, Args: map[string]any{"id": float64(7), "qty": float64(0)}},
			err:  failure,
			want: "No pude actualizar tu carrito 🛒. Probá de nuevo en un rato.",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Apology(tc.call, tc.err); got != tc.want {
				t.Fatalf("Apology() = %q, want %q", got, tc.want)
			}
		})
	}
}
