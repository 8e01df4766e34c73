package timeutil

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a point in time as stored on a draft document. Documents
// written over the lifetime of the system carry several representations:
// epoch milliseconds (integer or float), an RFC3339 string, a structured
// {"seconds":..,"nanos":..} object, or nothing at all. Timestamp accepts
// all of them and always marshals back as epoch milliseconds.
type Timestamp struct {
	t  time.Time
	ok bool
}

// At wraps a concrete time.
func At(t time.Time) Timestamp {
	return Timestamp{t: t.UTC(), ok: true}
}

// FromMillis builds a Timestamp from epoch milliseconds.
func FromMillis(ms int64) Timestamp {
	return Timestamp{t: time.UnixMilli(ms).UTC(), ok: true}
}

// Time returns the normalized time and whether the timestamp was present.
func (ts Timestamp) Time() (time.Time, bool) {
	return ts.t, ts.ok
}

// IsZero reports whether the timestamp was absent or unparseable.
func (ts Timestamp) IsZero() bool {
	return !ts.ok
}

// Millis returns the epoch-millisecond value, or 0 when absent.
func (ts Timestamp) Millis() int64 {
	if !ts.ok {
		return 0
	}
	return ts.t.UnixMilli()
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.ok {
		return []byte("null"), nil
	}
	return json.Marshal(ts.t.UnixMilli())
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	if string(b) == "null" {
		return nil
	}

	var ms float64
	if err := json.Unmarshal(b, &ms); err == nil {
		*ts = FromMillis(int64(ms))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("failed to parse timestamp string %q: %w", s, err)
		}
		*ts = At(t)
		return nil
	}

	var structured struct {
		Seconds int64 `json:"seconds"`
		Nanos   int64 `json:"nanos"`
	}
	if err := json.Unmarshal(b, &structured); err == nil {
		*ts = At(time.Unix(structured.Seconds, structured.Nanos))
		return nil
	}

	return fmt.Errorf("unrecognized timestamp representation: %s", string(b))
}

// Elapsed returns how long ago the timestamp was relative to now.
// An absent timestamp reports zero elapsed time.
func (ts Timestamp) Elapsed(now time.Time) time.Duration {
	if !ts.ok {
		return 0
	}
	return now.Sub(ts.t)
}

// Expired reports whether at least d has passed since the timestamp.
// An absent timestamp never counts as expired.
func (ts Timestamp) Expired(now time.Time, d time.Duration) bool {
	return ts.ok && now.Sub(ts.t) >= d
}
