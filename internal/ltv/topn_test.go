package ltv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ltvpipeline/internal/domain"
)

func records(pairs ...any) []domain.LTVRecord {
	out := make([]domain.LTVRecord, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.LTVRecord{CustomerID: pairs[i].(string), CLV: pairs[i+1].(float64)})
	}
	return out
}

func TestTopN(t *testing.T) {
	recs := records("a", 100.0, "b", 500.0, "c", 300.0, "d", 50.0, "e", 400.0)

	t.Run("returns the highest n", func(t *testing.T) {
		got := TopN(recs, 3)
		assert.Equal(t, []Ranked{{"b", 500}, {"e", 400}, {"c", 300}}, got)
	})

	t.Run("n larger than the record count", func(t *testing.T) {
		got := TopN(recs, 10)
		require.Len(t, got, 5)
		assert.Equal(t, "d", got[4].CustomerID)
	})

	t.Run("zero and negative n", func(t *testing.T) {
		assert.Equal(t, []Ranked{}, TopN(recs, 0))
		assert.Equal(t, []Ranked{}, TopN(recs, -1))
	})

	t.Run("no records", func(t *testing.T) {
		assert.Equal(t, []Ranked{}, TopN(nil, 3))
	})

	t.Run("ties break on customer id", func(t *testing.T) {
		got := TopN(records("z", 10.0, "m", 10.0, "a", 10.0, "q", 20.0), 3)
		assert.Equal(t, []Ranked{{"q", 20}, {"a", 10}, {"m", 10}}, got)
	})

	t.Run("input is not reordered", func(t *testing.T) {
		TopN(recs, 5)
		assert.Equal(t, "a", recs[0].CustomerID)
	})
}

func TestRanked_MarshalJSON(t *testing.T) {
	data, err := json.Marshal([]Ranked{{"96f55c7d8f42", 52000}, {"c2", 1234.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["96f55c7d8f42",52000],["c2",1234.5]]`, string(data))
}
