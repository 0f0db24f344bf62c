package contract

import (
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
)

const (
	ToolSearchProducts = "searchProducts"
	ToolGetProductByID = "getProductById"
	ToolAddToCart      = "addToCart"
	ToolViewCart       = "viewCart"
	ToolUpdateCartItem = "updateCartItem"
)

// ToolInvocation is a tool call requested by the model. Args are untrusted
// until validated against the tool declaration.
type ToolInvocation struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments,omitempty"`
}

// ToolResult is fed back to the model as {name, result}. Exactly one of
// Result and Error is set.
type ToolResult struct {
	Tool   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ProductList struct {
	Query    string             `json:"query"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Products []catalogx.Product `json:"products"`
}

type ProductDetail struct {
	Product catalogx.Product `json:"product"`
}

type CartLine struct {
	ProductID   int64   `json:"product_id"`
	GarmentType string  `json:"garment_type"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

type CartView struct {
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Total     float64    `json:"total"`
}

// OperationAck reports the outcome of a cart mutation together with the
// resulting cart. CartStale is set when the mutation was applied but the
// cart could not be loaded afterwards; Cart is then empty.
type OperationAck struct {
	Operation string   `json:"operation"`
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Removed   bool     `json:"removed"`
	Cart      CartView `json:"cart"`
	CartStale bool     `json:"cart_stale,omitempty"`
}
