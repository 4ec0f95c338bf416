package discount

// Scope describes what portion of an order a discount can apply to.
type Scope string

const (
	// ScopeOrder applies to the entire order.
	ScopeOrder Scope = "order"
	// ScopeProducts applies only when the order contains one of the
	// discount's member products.
	ScopeProducts Scope = "products"
	// ScopeCategories applies only when the order contains a product from
	// one of the discount's member categories.
	ScopeCategories Scope = "categories"
	// ScopeMinimum applies once the order reaches a minimum purchase amount.
	ScopeMinimum Scope = "minimum"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeOrder, ScopeProducts, ScopeCategories, ScopeMinimum:
		return true
	}
	return false
}

// Intersects reports whether any id in order appears in members.
func Intersects(members, order []string) bool {
	if len(members) == 0 || len(order) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(members))
	for _, id := range members {
		set[id] = struct{}{}
	}
	for _, id := range order {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
