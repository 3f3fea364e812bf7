package domain

// PriceMap maps an upper-case symbol to its spot price in USD.
type PriceMap map[string]float64

// Merge copies every entry of other into m, overwriting existing symbols.
func (m PriceMap) Merge(other PriceMap) {
	for k, v := range other {
		m[k] = v
	}
}
