package sqlbase

import "time"

var nowUnixNano = func() int64 { return time.Now().UnixNano() }

// ToUnixNano stores t as nanoseconds since the epoch. The zero time maps to 0.
func ToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

// FromUnixNano is the inverse of ToUnixNano, in UTC.
func FromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
