package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	cartx "github.com/tanpawarit/chative-commerce-agent/commerce/cart"
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

const defaultTimeout = 5 * time.Second

type Config struct {
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// Gateway adapts validated tool invocations to the product catalog and the
// cart engine. Every call carries its own timeout and is never retried.
type Gateway struct {
	products catalogx.Repository
	carts    cartx.Store
	timeout  time.Duration
}

var _ contractx.BackendGateway = (*Gateway)(nil)

func New(products catalogx.Repository, carts cartx.Store, cfg Config) (*Gateway, error) {
	if products == nil {
		return nil, errors.New("product repository is required")
	}
	if carts == nil {
		return nil, errors.New("cart store is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{products: products, carts: carts, timeout: timeout}, nil
}

func (g *Gateway) SearchProducts(ctx context.Context, query string, limit, offset int) ([]catalogx.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	products, err := g.products.Search(ctx, catalogx.NormalizeQuery(query), limit, offset)
	if err != nil {
		return nil, classify("search products", err)
	}
	return products, nil
}

func (g *Gateway) GetProduct(ctx context.Context, id int64) (contractx.ProductDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	p, err := g.products.Get(ctx, id)
	if err != nil {
		return contractx.ProductDetail{}, classify(fmt.Sprintf("get product id=%d", id), err)
	}
	return contractx.ProductDetail{Product: p}, nil
}

func (g *Gateway) AddToCart(ctx context.Context, userID string, productID int64, qty int) (contractx.OperationAck, error) {
	return g.mutate(ctx, "add", userID, productID, qty, func(c *cartx.Cart) {
		c.MergeAdd(productID, qty)
	})
}

func (g *Gateway) SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) (contractx.OperationAck, error) {
	if qty < 0 {
		return contractx.OperationAck{}, fmt.Errorf("%w: quantity must be >= 0, got %d", contractx.ErrValidation, qty)
	}
	return g.mutate(ctx, "set", userID, productID, qty, func(c *cartx.Cart) {
		c.SetAbsolute(productID, qty)
	})
}

func (g *Gateway) GetCart(ctx context.Context, userID string) (contractx.CartView, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	c, err := g.carts.Get(ctx, userID)
	if err != nil {
		return contractx.CartView{}, classify("get cart", err)
	}
	return g.view(ctx, c)
}

// mutate resolves the product before touching the cart so a missing product
// aborts the operation with the cart unchanged.
func (g *Gateway) mutate(
	ctx context.Context,
	op string,
	userID string,
	productID int64,
	qty int,
	apply func(*cartx.Cart),
) (contractx.OperationAck, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := g.products.Get(ctx, productID); err != nil {
		return contractx.OperationAck{}, classify(fmt.Sprintf("%s cart item product id=%d", op, productID), err)
	}

	c, err := g.carts.Update(ctx, userID, func(c *cartx.Cart) error {
		apply(c)
		return nil
	})
	if err != nil {
		return contractx.OperationAck{}, classify(fmt.Sprintf("%s cart item", op), err)
	}

	current := c.Quantity(productID)
	ack := contractx.OperationAck{
		Operation: op,
		ProductID: productID,
		Quantity:  current,
		Removed:   current == 0,
	}

	// The mutation is committed at this point; a failed view must not
	// report the operation as failed.
	view, err := g.view(ctx, c)
	if err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("op", op).
			Int64("product_id", productID).
			Msg("cart updated but view could not be built")
		ack.Cart = contractx.CartView{UserID: c.UserID, Lines: []contractx.CartLine{}}
		ack.CartStale = true
		return ack, nil
	}
	ack.Cart = view
	return ack, nil
}

func (g *Gateway) view(ctx context.Context, c *cartx.Cart) (contractx.CartView, error) {
	out := contractx.CartView{
		UserID: c.UserID,
		Lines:  make([]contractx.CartLine, 0, len(c.Items)),
	}

	products := make(map[int64]catalogx.Product, len(c.Items))
	for _, it := range c.Items {
		p, err := g.products.Get(ctx, it.ProductID)
		if errors.Is(err, catalogx.ErrProductNotFound) {
			zerolog.Ctx(ctx).Warn().
				Int64("product_id", it.ProductID).
				Str("user_id", c.UserID).
				Msg("cart line references a product missing from the catalog")
			continue
		}
		if err != nil {
			return contractx.CartView{}, classify("load cart product", err)
		}
		products[p.ID] = p

		out.Lines = append(out.Lines, contractx.CartLine{
			ProductID:   p.ID,
			GarmentType: p.GarmentType,
			Color:       p.Color,
			Size:        p.Size,
			Quantity:    it.Quantity,
			UnitPrice:   cartx.PricePerUnit(p, it.Quantity),
			LineTotal:   cartx.LineTotal(p, it.Quantity),
		})
		out.ItemCount += it.Quantity
	}
	out.Total = cartx.Total(c, products)
	return out, nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, catalogx.ErrProductNotFound):
		return fmt.Errorf("%w: %s: %w", contractx.ErrNotFound, op, err)
	case errors.Is(err, catalogx.ErrInvalidProduct),
		errors.Is(err, cartx.ErrInvalidUser),
		errors.Is(err, cartx.ErrInvalidProduct):
		return fmt.Errorf("%w: %s: %w", contractx.ErrValidation, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", contractx.ErrUpstreamFailure, op, err)
	}
}
