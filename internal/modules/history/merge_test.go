package history

import (
	"testing"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(day string, price float64) domain.PricePoint {
	t, err := time.Parse(time.RFC3339, day)
	if err != nil {
		panic(err)
	}
	return domain.PricePoint{Timestamp: t, Price: price}
}

// TestMergeIncomingWins tests that incoming strictly overwrites existing
// points on the same calendar day.
func TestMergeIncomingWins(t *testing.T) {
	existing := []domain.PricePoint{point("2024-01-01T00:00:00Z", 10)}
	incoming := []domain.PricePoint{point("2024-01-01T16:00:00Z", 12)}

	merged := Merge(existing, incoming)

	require.Len(t, merged, 1)
	assert.Equal(t, 12.0, merged[0].Price)
	// The surviving point is the incoming one, full timestamp included.
	assert.Equal(t, 16, merged[0].Timestamp.Hour())
}

// TestMergeIdempotent tests merge(merge(a,b), b) == merge(a,b).
func TestMergeIdempotent(t *testing.T) {
	a := []domain.PricePoint{
		point("2024-01-01T00:00:00Z", 10),
		point("2024-01-02T00:00:00Z", 11),
	}
	b := []domain.PricePoint{
		point("2024-01-02T00:00:00Z", 12),
		point("2024-01-03T00:00:00Z", 13),
	}

	once := Merge(a, b)
	twice := Merge(once, b)

	assert.Equal(t, once, twice)
}

// TestMergeSortedAscending tests chronological ordering of the result.
func TestMergeSortedAscending(t *testing.T) {
	existing := []domain.PricePoint{
		point("2024-01-05T00:00:00Z", 15),
		point("2024-01-01T00:00:00Z", 10),
	}
	incoming := []domain.PricePoint{
		point("2024-01-03T00:00:00Z", 12),
	}

	merged := Merge(existing, incoming)

	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i-1].Timestamp.Before(merged[i].Timestamp))
	}
}

// TestMergeEmptySides tests merging with empty sequences.
func TestMergeEmptySides(t *testing.T) {
	points := []domain.PricePoint{point("2024-01-01T00:00:00Z", 10)}

	assert.Equal(t, points, Merge(nil, points))
	assert.Equal(t, points, Merge(points, nil))
	assert.Empty(t, Merge(nil, nil))
}

// TestFilterFromBuyDate tests that pre-buy-date days are discarded while
// the buy day itself survives regardless of time of day.
func TestFilterFromBuyDate(t *testing.T) {
	points := []domain.PricePoint{
		point("2024-01-01T00:00:00Z", 10),
		point("2024-01-02T00:00:00Z", 11),
		point("2024-01-03T00:00:00Z", 12),
	}
	buyDate := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)

	kept := FilterFromBuyDate(points, buyDate)

	require.Len(t, kept, 2)
	assert.Equal(t, 11.0, kept[0].Price)
	assert.Equal(t, 12.0, kept[1].Price)
}

// TestFilterFromBuyDateZero tests that a zero buy date filters nothing.
func TestFilterFromBuyDateZero(t *testing.T) {
	points := []domain.PricePoint{point("2024-01-01T00:00:00Z", 10)}
	assert.Equal(t, points, FilterFromBuyDate(points, time.Time{}))
}
