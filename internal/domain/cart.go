package domain

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func init() {
	// The remote API exchanges prices as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductID identifies a catalog product. The remote API is not consistent about
// sending ids as numbers or strings, so both are accepted.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = ProductID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ProductID(n.String())
	return nil
}

// --- Cart Entities ---

// CartLine is one product entry in the cart together with its quantity.
type CartLine struct {
	ID        ProductID       `json:"id" validate:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	Category  string          `json:"category,omitempty"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal is UnitPrice x Quantity, unrounded.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Product is the subset of catalog data the storefront hands to the cart.
type Product struct {
	ID       ProductID
	Name     string
	Price    decimal.Decimal
	Category string
	Image    string
}

// Line builds a fresh cart line for p with the given quantity.
func (p Product) Line(quantity int) CartLine {
	return CartLine{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Category:  p.Category,
		Image:     p.Image,
	}
}

// Cart is an ordered list of lines, at most one per product.
type Cart []CartLine

// Index returns the position of the line for id, or -1.
func (c Cart) Index(id ProductID) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Total sums every line and rounds to cents. Decimal arithmetic keeps cent drift out.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

// ItemCount sums quantities, not lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

// Normalize drops lines with an empty id or a quantity below one, keeps only
// the first line of a duplicated id, and sets negative prices to zero. Remote
// and mirrored carts pass through here before the store adopts them.
func (c Cart) Normalize() Cart {
	out := make(Cart, 0, len(c))
	for _, l := range c {
		if l.ID == "" || l.Quantity < 1 || out.Index(l.ID) >= 0 {
			continue
		}
		if l.UnitPrice.IsNegative() {
			l.UnitPrice = decimal.Zero
		}
		out = append(out, l)
	}
	return out
}
