package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// BunStore persists carts in Postgres. Each Update runs in one transaction
// holding a row lock on the cart, so concurrent updates for the same user
// queue behind each other and a failing fn leaves the cart untouched.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*BunStore)(nil)

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

// CreateSchema creates the carts and cart_items tables when missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*Cart)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create carts table: %w", err)
	}
	if _, err := db.NewCreateTable().
		Model((*Item)(nil)).
		IfNotExists().
		ForeignKey(`("cart_id") REFERENCES "carts" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create cart_items table: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, userID string) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}

	var out *Cart
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		c, err := loadCart(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BunStore) Update(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}

	var out *Cart
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		c, err := loadCart(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		before := make(map[int64]int, len(c.Items))
		for _, it := range c.Items {
			before[it.ProductID] = it.Quantity
		}

		if err := fn(c); err != nil {
			return err
		}

		if err := persistItems(ctx, tx, c, before); err != nil {
			return err
		}

		c.UpdatedAt = s.now().UTC()
		if _, err := tx.NewUpdate().
			Model(c).
			Column("updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("touch cart id=%d: %w", c.ID, err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadCart(ctx context.Context, tx bun.Tx, userID string, forUpdate bool) (*Cart, error) {
	if _, err := tx.NewInsert().
		Model(New(userID)).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("ensure cart user=%s: %w", userID, err)
	}

	c := new(Cart)
	q := tx.NewSelect().Model(c).Where("c.user_id = ?", userID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load cart user=%s: %w", userID, err)
	}

	c.Items = make([]*Item, 0, 4)
	if err := tx.NewSelect().
		Model(&c.Items).
		Where("ci.cart_id = ?", c.ID).
		OrderExpr("ci.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("load cart items cart=%d: %w", c.ID, err)
	}
	return c, nil
}

func persistItems(ctx context.Context, tx bun.Tx, c *Cart, before map[int64]int) error {
	after := make(map[int64]struct{}, len(c.Items))
	changed := make([]*Item, 0, len(c.Items))
	for _, it := range c.Items {
		it.CartID = c.ID
		after[it.ProductID] = struct{}{}
		if prev, ok := before[it.ProductID]; !ok || prev != it.Quantity {
			changed = append(changed, it)
		}
	}

	removed := make([]int64, 0)
	for productID := range before {
		if _, ok := after[productID]; !ok {
			removed = append(removed, productID)
		}
	}

	if len(removed) > 0 {
		if _, err := tx.NewDelete().
			Model((*Item)(nil)).
			Where("cart_id = ?", c.ID).
			Where("product_id IN (?)", bun.In(removed)).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete cart items cart=%d: %w", c.ID, err)
		}
	}

	if len(changed) > 0 {
		if _, err := tx.NewInsert().
			Model(&changed).
			On("CONFLICT (cart_id, product_id) DO UPDATE").
			Set("quantity = EXCLUDED.quantity").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert cart items cart=%d: %w", c.ID, err)
		}
	}
	return nil
}
