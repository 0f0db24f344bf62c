package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

type searchCall struct {
	query         string
	limit, offset int
}

type fakeGateway struct {
	searches []searchCall
	adds     int
	err      error
}

func (f *fakeGateway) SearchProducts(ctx context.Context, query string, limit, offset int) ([]catalogx.Product, error) {
	f.searches = append(f.searches, searchCall{query: query, limit: limit, offset: offset})
	if f.err != nil {
		return nil, f.err
	}
	return []catalogx.Product{{ID: int64(offset + 1), GarmentType: "Blusa"}}, nil
}

func (f *fakeGateway) GetProduct(ctx context.Context, id int64) (contractx.ProductDetail, error) {
	if f.err != nil {
		return contractx.ProductDetail{}, f.err
	}
	return contractx.ProductDetail{Product: catalogx.Product{ID: id}}, nil
}

func (f *fakeGateway) AddToCart(ctx context.Context, userID string, productID int64, qty int) (contractx.OperationAck, error) {
	f.adds++
	if f.err != nil {
		return contractx.OperationAck{}, f.err
	}
	return contractx.OperationAck{Operation: "add", ProductID: productID, Quantity: qty}, nil
}

func (f *fakeGateway) SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) (contractx.OperationAck, error) {
	if f.err != nil {
		return contractx.OperationAck{}, f.err
	}
	return contractx.OperationAck{Operation: "set", ProductID: productID, Quantity: qty, Removed: qty == 0}, nil
}

func (f *fakeGateway) GetCart(ctx context.Context, userID string) (contractx.CartView, error) {
	if f.err != nil {
		return contractx.CartView{}, f.err
	}
	return contractx.CartView{UserID: userID, Lines: []contractx.CartLine{}}, nil
}

func newTestExecutor(t *testing.T, gw *fakeGateway) (*Executor, *statex.MemoryStore) {
	t.Helper()
	sessions := statex.NewMemoryStore(0)
	exec, err := NewExecutor(gw, sessions, 5)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return exec, sessions
}

func TestExecutorSearchPaginates(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	exec, sessions := newTestExecutor(t, gw)
	ctx := context.Background()

	steps := []struct {
		args       map[string]any
		wantPage   int
		wantOffset int
	}{
		{args: map[string]any{"query": "Blusas"}, wantPage: 1, wantOffset: 0},
		{args: map[string]any{"query": "blusa", "more": true}, wantPage: 2, wantOffset: 5},
		{args: map[string]any{"query": "blusás", "more": true}, wantPage: 3, wantOffset: 10},
		{args: map[string]any{"query": "falda", "more": true}, wantPage: 1, wantOffset: 0},
	}
	for i, step := range steps {
		out, err := exec.Execute(ctx, "u1", contractx.ToolInvocation{Name: contractx.ToolSearchProducts, Args: step.args})
		if err != nil {
			t.Fatalf("step %d Execute() error = %v", i, err)
		}
		list, ok := out.Result.(contractx.ProductList)
		if !ok {
			t.Fatalf("step %d unexpected result type: %T", i, out.Result)
		}
		if list.Page != step.wantPage {
			t.Fatalf("step %d page = %d, want %d", i, list.Page, step.wantPage)
		}
		if gw.searches[i].offset != step.wantOffset || gw.searches[i].limit != 5 {
			t.Fatalf("step %d search call = %#v", i, gw.searches[i])
		}
	}

	c, err := sessions.Cursor(ctx, "u1")
	if err != nil {
		t.Fatalf("Cursor() error = %v", err)
	}
	if c.LastQuery != "falda" || c.Page != 1 {
		t.Fatalf("unexpected cursor: %#v", c)
	}
}

func TestExecutorSearchFailureKeepsCursor(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	exec, sessions := newTestExecutor(t, gw)
	ctx := context.Background()

	if _, err := exec.Execute(ctx, "u1", contractx.ToolInvocation{Name: contractx.ToolSearchProducts, Args: map[string]any{"query": "blusa"}}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	gw.err = fmt.Errorf("%w: boom", contractx.ErrUpstreamFailure)
	out, err := exec.Execute(ctx, "u1", contractx.ToolInvocation{Name: contractx.ToolSearchProducts, Args: map[string]any{"query": "blusa", "more": true}})
	if !errors.Is(err, contractx.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if out.Error == "" || out.Tool != contractx.ToolSearchProducts {
		t.Fatalf("unexpected failed result: %#v", out)
	}

	c, _ := sessions.Cursor(ctx, "u1")
	if c.Page != 1 {
		t.Fatalf("cursor advanced on failure: %#v", c)
	}
}

func TestExecutorCartDispatch(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	exec, _ := newTestExecutor(t, gw)
	ctx := context.Background()

	out, err := exec.Execute(ctx, "u1", contractx.ToolInvocation{
		Name: contractx.ToolAddToCart,
		Args: map[string]any{"id": float64(7), "qty": float64(3)},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	ack, ok := out.Result.(contractx.OperationAck)
	if !ok || ack.ProductID != 7 || ack.Quantity != 3 {
		t.Fatalf("unexpected ack: %#v", out.Result)
	}

	out, err = exec.Execute(ctx, "u1", contractx.ToolInvocation{Name: contractx.ToolViewCart})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if view, ok := out.Result.(contractx.CartView); !ok || view.UserID != "u1" {
		t.Fatalf("unexpected cart view: %#v", out.Result)
	}
}

func TestExecutorRejectsBadArgsWithoutDispatch(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	exec, _ := newTestExecutor(t, gw)

	_, err := exec.Execute(context.Background(), "u1", contractx.ToolInvocation{
		Name: contractx.ToolAddToCart,
		Args: map[string]any{"id": float64(7)},
	})
	var verr *contractx.ValidationError
	if !errors.As(err, &verr) || len(verr.Missing) != 1 || verr.Missing[0] != "qty" {
		t.Fatalf("expected missing qty, got %v", err)
	}
	if gw.adds != 0 {
		t.Fatalf("gateway called %d times", gw.adds)
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, &fakeGateway{})
	_, err := exec.Execute(context.Background(), "u1", contractx.ToolInvocation{Name: "checkout"})
	var verr *contractx.ValidationError
	if !errors.As(err, &verr) || !verr.Unknown {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}
