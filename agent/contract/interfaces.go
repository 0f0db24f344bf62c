package contract

import (
	"context"

	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

// BackendGateway performs exactly one backend operation per tool.
type BackendGateway interface {
	SearchProducts(ctx context.Context, query string, limit, offset int) ([]catalogx.Product, error)
	GetProduct(ctx context.Context, id int64) (ProductDetail, error)
	AddToCart(ctx context.Context, userID string, productID int64, qty int) (OperationAck, error)
	SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) (OperationAck, error)
	GetCart(ctx context.Context, userID string) (CartView, error)
}

// Sender delivers one outbound message to a recipient.
type Sender interface {
	Send(ctx context.Context, to string, body string) error
}
