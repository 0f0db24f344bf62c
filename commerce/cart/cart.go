package cart

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrInvalidUser    = errors.New("cart user id is empty")
	ErrInvalidProduct = errors.New("cart product id must be positive")
)

// Cart is the single cart owned by one user.
type Cart struct {
	bun.BaseModel `bun:"table:carts,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull,unique"`
	Items     []*Item   `bun:"rel:has-many,join:id=cart_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Item is one product line. Quantity is always > 0; a line reaching zero is
// removed from the cart.
type Item struct {
	bun.BaseModel `bun:"table:cart_items,alias:ci"`

	ID        int64 `bun:"id,pk,autoincrement"`
	CartID    int64 `bun:"cart_id,notnull,unique:cart_product"`
	ProductID int64 `bun:"product_id,notnull,unique:cart_product"`
	Quantity  int   `bun:"quantity,notnull"`
}

// Store owns per-user cart state. Get creates an empty cart for an unseen
// user. Update runs fn against the user's cart under per-user mutual
// exclusion and persists the result only when fn returns nil.
type Store interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Update(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error)
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Items: make([]*Item, 0, 4)}
}

// Quantity returns the current quantity of productID, zero when absent.
func (c *Cart) Quantity(productID int64) int {
	if it, _ := c.find(productID); it != nil {
		return it.Quantity
	}
	return 0
}

// MergeAdd adds delta to the product's line. A resulting quantity <= 0
// removes the line; a non-positive delta on a missing line is a no-op.
func (c *Cart) MergeAdd(productID int64, delta int) {
	it, idx := c.find(productID)
	if it == nil {
		if delta > 0 {
			c.Items = append(c.Items, &Item{CartID: c.ID, ProductID: productID, Quantity: delta})
		}
		return
	}

	next := it.Quantity + delta
	if next <= 0 {
		c.remove(idx)
		return
	}
	it.Quantity = next
}

// SetAbsolute replaces the product's quantity with qty. Zero removes the
// line.
func (c *Cart) SetAbsolute(productID int64, qty int) {
	it, idx := c.find(productID)
	if qty <= 0 {
		if it != nil {
			c.remove(idx)
		}
		return
	}
	if it == nil {
		c.Items = append(c.Items, &Item{CartID: c.ID, ProductID: productID, Quantity: qty})
		return
	}
	it.Quantity = qty
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]*Item, 0, len(c.Items))
	for _, it := range c.Items {
		cp := *it
		out.Items = append(out.Items, &cp)
	}
	return &out
}

func (c *Cart) find(productID int64) (*Item, int) {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return it, i
		}
	}
	return nil, -1
}

func (c *Cart) remove(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}
