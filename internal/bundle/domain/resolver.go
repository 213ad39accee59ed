package domain

import productdomain "github.com/smallbiznis/digistore/internal/product/domain"

// Resolved is a bundle with its member products looked up and the derived
// prices computed.
type Resolved struct {
	Bundle        Bundle
	Products      []productdomain.Product
	OriginalPrice int64
	Savings       int64
}

// Resolve walks memberIDs in order and skips ids missing from products.
// OriginalPrice sums the resolved members; Savings is OriginalPrice minus the
// bundle price and may be negative when members were removed.
func Resolve(b Bundle, memberIDs []int64, products map[int64]productdomain.Product) Resolved {
	out := Resolved{Bundle: b, Products: make([]productdomain.Product, 0, len(memberIDs))}
	for _, id := range memberIDs {
		p, ok := products[id]
		if !ok {
			continue
		}
		out.Products = append(out.Products, p)
		out.OriginalPrice += p.Price
	}
	out.Savings = out.OriginalPrice - b.Price
	return out
}
