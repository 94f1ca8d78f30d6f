package shop

import "github.com/jwalitptl/clinic-sync/internal/model"

// Cart keeps lines in insertion order.
type Cart struct {
	items []model.CartItem
}

// Add puts one unit of item in the cart, incrementing an existing line.
func (c *Cart) Add(item model.CatalogItem) {
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Qty++
			return
		}
	}
	c.items = append(c.items, model.CartItem{ID: item.ID, Name: item.Name, Price: item.Price, Qty: 1})
}

// Update sets the quantity of a line. Quantities below one become one.
func (c *Cart) Update(id, qty int) {
	if qty < 1 {
		qty = 1
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Qty = qty
			return
		}
	}
}

func (c *Cart) Remove(id int) {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

func (c *Cart) Qty(id int) int {
	for _, it := range c.items {
		if it.ID == id {
			return it.Qty
		}
	}
	return 0
}

func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.items {
		total += it.Price * int64(it.Qty)
	}
	return total
}

func (c *Cart) Items() []model.CartItem {
	out := make([]model.CartItem, len(c.items))
	copy(out, c.items)
	return out
}
