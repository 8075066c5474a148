// Package basket caches the shopping basket of the current identity.
//
// Every mutation waits for the server and then invalidates the whole basket
// prefix; totals and discounts are server rules, so nothing is computed
// optimistically. Derived values are recomputed from the snapshot on every
// call and never stored.
package basket

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoBasket is returned by item mutations when the identity has no basket.
	ErrNoBasket = errors.New("basket: no basket")

	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("basket: quantity must be at least 1")
)

// Item is one basket line.
type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Basket is a server basket. It is replaced, never edited, on every read.
type Basket struct {
	ID       int64           `json:"id"`
	Items    []Item          `json:"items"`
	Discount decimal.Decimal `json:"discount"`
}

// Total is the sum of line subtotals minus the server reported discount.
func (b Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.Subtotal())
	}
	return total.Sub(b.Discount)
}

// Quantity is the number of units across all lines.
func (b Basket) Quantity() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

// Item returns the line for productID.
func (b Basket) Item(productID int64) (Item, bool) {
	for _, it := range b.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Snapshot is everything the server returned for one basket read.
type Snapshot struct {
	Baskets []Basket `json:"baskets"`
}

// Current returns the basket items are added to: the first one.
func (s Snapshot) Current() (Basket, bool) {
	if len(s.Baskets) == 0 {
		return Basket{}, false
	}
	return s.Baskets[0], true
}

// IsEmpty reports whether there is no basket or the first one has no items.
func (s Snapshot) IsEmpty() bool {
	b, ok := s.Current()
	return !ok || len(b.Items) == 0
}

// Total of the current basket.
func (s Snapshot) Total() decimal.Decimal {
	b, _ := s.Current()
	return b.Total()
}

// Quantity of the current basket.
func (s Snapshot) Quantity() int {
	b, _ := s.Current()
	return b.Quantity()
}
