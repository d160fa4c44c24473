package ltv

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	"example.com/ltvpipeline/internal/domain"
)

// Ranked is one entry of a top-N result. It encodes as the JSON pair
// [customer_id, clv].
type Ranked struct {
	CustomerID string
	CLV        float64
}

func (r Ranked) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.CustomerID, r.CLV})
}

// TopN returns the n records with the highest CLV, highest first. Equal CLVs
// are ordered by ascending customer_id. n <= 0 yields an empty result.
func TopN(records []domain.LTVRecord, n int) []Ranked {
	if n <= 0 || len(records) == 0 {
		return []Ranked{}
	}

	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b domain.LTVRecord) int {
		if c := cmp.Compare(b.CLV, a.CLV); c != 0 {
			return c
		}
		return strings.Compare(a.CustomerID, b.CustomerID)
	})

	n = min(n, len(sorted))
	out := make([]Ranked, n)
	for i := range out {
		out[i] = Ranked{CustomerID: sorted[i].CustomerID, CLV: sorted[i].CLV}
	}
	return out
}
