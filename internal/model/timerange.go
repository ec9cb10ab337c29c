package model

import "time"

// Timerange is a half-open [From, Until) interval of epoch seconds used to
// scope a query.
type Timerange struct {
	From  int64
	Until int64
}

// Overlaps reports whether a block spanning start..end (as stored in a
// Header) overlaps t, using end > t.From && start < t.Until: a block whose
// end equals t.From is not counted.
func (t Timerange) Overlaps(start, end int64) bool {
	return end > t.From && start < t.Until
}

// Contains reports whether timestamp ts falls within [t.From, t.Until).
func (t Timerange) Contains(ts int64) bool {
	return ts >= t.From && ts < t.Until
}

// Since builds a Timerange covering [from, now).
func Since(from time.Time) Timerange {
	return Timerange{From: from.Unix(), Until: time.Now().Unix()}
}
