package models

// StockRequirement is a quantity demanded from a single variant.
type StockRequirement struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// StockShortfall reports a variant that cannot cover a requirement.
type StockShortfall struct {
	VariantID int64  `json:"variant_id"`
	Label     string `json:"label"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// VariantStock is the minimal stock view read under a write lock.
type VariantStock struct {
	VariantID int64
	Label     string
	Stock     int
}

// AggregateRequirements sums order item quantities per variant. Two lines of
// the same variant must be checked against stock as one combined demand.
// First-seen variant order is preserved.
func AggregateRequirements(items []OrderItem) []StockRequirement {
	idx := make(map[int64]int, len(items))
	out := make([]StockRequirement, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.VariantID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.VariantID] = len(out)
		out = append(out, StockRequirement{VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return out
}
