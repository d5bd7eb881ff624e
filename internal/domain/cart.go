package domain

// CartLine is one (product, quantity) pair. UnitPrice is the price the
// customer saw when adding the item; it is what gets frozen into the
// order line, not whatever the catalog says later.
type CartLine struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Cart is an explicit cart value keyed by product id. Insertion order
// is preserved for display; totals don't depend on it.
type Cart struct {
	lines []CartLine
}

// NewCart builds a cart from existing lines, merging duplicate product
// ids and discarding lines with quantity below one.
func NewCart(lines []CartLine) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		c.add(l)
	}
	return c
}

func (c *Cart) add(line CartLine) {
	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			c.lines[i].Quantity += line.Quantity
			return
		}
	}
	c.lines = append(c.lines, line)
}

// Add puts one unit of the product into the cart.
func (c *Cart) Add(p Product) {
	c.add(CartLine{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: 1})
}

// SetQuantity updates a line's quantity. Anything below one removes
// the line, so a quantity under one is never kept.
func (c *Cart) SetQuantity(productID int64, quantity int) {
	if quantity < 1 {
		c.Remove(productID)
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = quantity
			return
		}
	}
}

// Remove drops the product's line entirely.
func (c *Cart) Remove(productID int64) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal is the sum of unit price times quantity over all lines.
func (c *Cart) Subtotal() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}
