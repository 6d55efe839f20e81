package aggregate

import (
	"math"
	"time"

	"github.com/jgoulah/gridload/pkg/models"
)

// Redistribute spreads readings that share a raw timestamp across the minute
// that timestamp falls in. Within a group of n readings the r-th (1-based, in
// slice order) gets minute + round(r*60/n) seconds, so three readings land on
// :20, :40 and :60. Every group is treated the same way, including groups of one.
// Timestamp is overwritten; RawTimestamp is left alone, so calling it again on
// the same slice gives the same result.
func Redistribute(rows []models.Reading) {
	groups := make(map[time.Time][]int)
	var order []time.Time
	for i := range rows {
		key := rows[i].RawTimestamp.UTC()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		members := groups[key]
		n := len(members)
		minute := key.Truncate(time.Minute)
		for rank, idx := range members {
			rows[idx].Timestamp = minute.Add(Offset(rank+1, n))
		}
	}
}

// Offset is the position of the r-th of n co-timestamped readings within its minute
func Offset(r, n int) time.Duration {
	secs := math.Round(float64(r) * 60.0 / float64(n))
	return time.Duration(secs) * time.Second
}
