// Package cart holds the shopper's cart as an explicit state container.
// The cart is never the system of record; orders are.
package cart

import "errors"

const (
	KindProduct = "product"
	KindBundle  = "bundle"
)

var (
	ErrInvalidRef      = errors.New("invalid_cart_item")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidCartID   = errors.New("invalid_cart_id")
	ErrItemUnavailable = errors.New("cart_item_unavailable")
)

// ItemRef identifies a cart line. Products and bundles share an id space, so
// the kind is part of the identity.
type ItemRef struct {
	Kind string `json:"type"`
	ID   string `json:"id"`
}

func (r ItemRef) Valid() bool {
	return r.ID != "" && (r.Kind == KindProduct || r.Kind == KindBundle)
}

type Item struct {
	ItemRef
	Name  string `json:"name"`
	Price int64  `json:"price"`
	// OriginalPrice is set for discounted lines such as bundles.
	OriginalPrice *int64 `json:"originalPrice,omitempty"`
	Quantity      int    `json:"quantity"`
}

type State struct {
	Items  []Item `json:"items"`
	IsOpen bool   `json:"isOpen"`
}

// Total is the sum of price times quantity.
func (s State) Total() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// Savings sums the discount of lines whose original price exceeds the price.
func (s State) Savings() int64 {
	var savings int64
	for _, item := range s.Items {
		if item.OriginalPrice == nil || *item.OriginalPrice <= item.Price {
			continue
		}
		savings += (*item.OriginalPrice - item.Price) * int64(item.Quantity)
	}
	return savings
}

func (s State) ItemCount() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

func (s State) index(ref ItemRef) int {
	for i, item := range s.Items {
		if item.ItemRef == ref {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	out := State{IsOpen: s.IsOpen, Items: make([]Item, len(s.Items))}
	copy(out.Items, s.Items)
	return out
}

// Action is a cart mutation applied by Store.Dispatch.
type Action interface {
	apply(State) State
}

// AddItem increments an existing line or appends a new one with quantity 1,
// and opens the cart.
type AddItem struct {
	Item Item
}

func (a AddItem) apply(s State) State {
	s.IsOpen = true
	if i := s.index(a.Item.ItemRef); i >= 0 {
		s.Items[i].Quantity++
		return s
	}
	item := a.Item
	item.Quantity = 1
	s.Items = append(s.Items, item)
	return s
}

type RemoveItem struct {
	Ref ItemRef
}

func (a RemoveItem) apply(s State) State {
	i := s.index(a.Ref)
	if i < 0 {
		return s
	}
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
	return s
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
type UpdateQuantity struct {
	Ref      ItemRef
	Quantity int
}

func (a UpdateQuantity) apply(s State) State {
	if a.Quantity <= 0 {
		return RemoveItem{Ref: a.Ref}.apply(s)
	}
	if i := s.index(a.Ref); i >= 0 {
		s.Items[i].Quantity = a.Quantity
	}
	return s
}

type ClearCart struct{}

func (ClearCart) apply(s State) State {
	s.Items = nil
	return s
}

type Open struct{}

func (Open) apply(s State) State {
	s.IsOpen = true
	return s
}

type Close struct{}

func (Close) apply(s State) State {
	s.IsOpen = false
	return s
}

type Toggle struct{}

func (Toggle) apply(s State) State {
	s.IsOpen = !s.IsOpen
	return s
}
