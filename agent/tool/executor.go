package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

// Executor dispatches one validated tool invocation to the backend gateway.
// It never retries; a failed call is reported once.
type Executor struct {
	gateway  contractx.BackendGateway
	sessions statex.Store
	pageSize int
}

func NewExecutor(gateway contractx.BackendGateway, sessions statex.Store, pageSize int) (*Executor, error) {
	if gateway == nil {
		return nil, errors.New("backend gateway is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if pageSize <= 0 {
		pageSize = statex.DefaultPageSize
	}
	return &Executor{gateway: gateway, sessions: sessions, pageSize: pageSize}, nil
}

// Execute runs inv for userID. On failure the returned ToolResult carries the
// error description and the error is returned as well.
func (e *Executor) Execute(ctx context.Context, userID string, inv contractx.ToolInvocation) (contractx.ToolResult, error) {
	result, err := e.dispatch(ctx, userID, inv)
	if err != nil {
		return contractx.ToolResult{Tool: inv.Name, Error: err.Error()}, err
	}
	return contractx.ToolResult{Tool: inv.Name, Result: result}, nil
}

func (e *Executor) dispatch(ctx context.Context, userID string, inv contractx.ToolInvocation) (any, error) {
	switch inv.Name {
	case contractx.ToolSearchProducts:
		return e.searchProducts(ctx, userID, inv.Args)
	case contractx.ToolGetProductByID:
		id, err := intArg(inv, "id")
		if err != nil {
			return nil, err
		}
		return e.gateway.GetProduct(ctx, id)
	case contractx.ToolAddToCart:
		id, qty, err := cartArgs(inv)
		if err != nil {
			return nil, err
		}
		return e.gateway.AddToCart(ctx, userID, id, int(qty))
	case contractx.ToolUpdateCartItem:
		id, qty, err := cartArgs(inv)
		if err != nil {
			return nil, err
		}
		return e.gateway.SetCartItemQuantity(ctx, userID, id, int(qty))
	case contractx.ToolViewCart:
		return e.gateway.GetCart(ctx, userID)
	default:
		return nil, &contractx.ValidationError{Tool: inv.Name, Unknown: true}
	}
}

// searchProducts pages through the last query when more=true and the
// normalized query is unchanged; any other search starts at page 1.
func (e *Executor) searchProducts(ctx context.Context, userID string, args map[string]any) (contractx.ProductList, error) {
	raw, _ := args["query"].(string)
	query := catalogx.NormalizeQuery(raw)
	more, _ := args["more"].(bool)

	cursor, err := e.sessions.Cursor(ctx, userID)
	if err != nil {
		return contractx.ProductList{}, fmt.Errorf("%w: load search cursor: %w", contractx.ErrUpstreamFailure, err)
	}

	next := statex.Cursor{LastQuery: query, Page: 1, PageSize: e.pageSize}
	if more && query != "" && query == cursor.LastQuery {
		next.Page = cursor.Page + 1
	}

	products, err := e.gateway.SearchProducts(ctx, query, next.PageSize, next.Offset())
	if err != nil {
		return contractx.ProductList{}, err
	}
	if err := e.sessions.SaveCursor(ctx, userID, next); err != nil {
		return contractx.ProductList{}, fmt.Errorf("%w: save search cursor: %w", contractx.ErrUpstreamFailure, err)
	}

	return contractx.ProductList{
		Query:    query,
		Page:     next.Page,
		PageSize: next.PageSize,
		Products: products,
	}, nil
}

func cartArgs(inv contractx.ToolInvocation) (int64, int64, error) {
	id, err := intArg(inv, "id")
	if err != nil {
		return 0, 0, err
	}
	qty, err := intArg(inv, "qty")
	if err != nil {
		return 0, 0, err
	}
	return id, qty, nil
}

// intArg reads an integral argument decoded from JSON.
func intArg(inv contractx.ToolInvocation, key string) (int64, error) {
	v, ok := inv.Args[key]
	if !ok {
		return 0, &contractx.ValidationError{Tool: inv.Name, Missing: []string{key}}
	}

	invalid := &contractx.ValidationError{Tool: inv.Name, Invalid: []string{key}}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, invalid
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid
		}
		return i, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, &contractx.ValidationError{Tool: inv.Name, Missing: []string{key}}
		}
		return 0, invalid
	default:
		return 0, invalid
	}
}
