// Package clock provides monotonic absolute and relative timestamps at
// nanosecond resolution, used throughout the simulation so that every
// duration arithmetic site is explicit about which side of the subtraction
// is an instant and which is a span.
package clock

import "time"

// Absolute is a monotonic instant in time, nanosecond resolution.
type Absolute struct {
	t time.Time
}

// Relative is a span of time, nanosecond resolution.
type Relative struct {
	d time.Duration
}

// Now returns the current monotonic instant.
func Now() Absolute {
	return Absolute{t: time.Now()}
}

// NewRelative wraps a time.Duration as a Relative span.
func NewRelative(d time.Duration) Relative {
	return Relative{d: d}
}

// Duration unwraps a Relative span back to a time.Duration.
func (r Relative) Duration() time.Duration {
	return r.d
}

// Zero reports whether the span is exactly zero.
func (r Relative) Zero() bool {
	return r.d == 0
}

// Add returns a + r.
func (a Absolute) Add(r Relative) Absolute {
	return Absolute{t: a.t.Add(r.d)}
}

// Sub returns a - other as a Relative span.
func (a Absolute) Sub(other Absolute) Relative {
	return Relative{d: a.t.Sub(other.t)}
}

// Cmp returns -1, 0, 1 as a is before, equal to, or after other.
func (a Absolute) Cmp(other Absolute) int {
	switch {
	case a.t.Before(other.t):
		return -1
	case a.t.After(other.t):
		return 1
	default:
		return 0
	}
}

// Before reports a < other.
func (a Absolute) Before(other Absolute) bool { return a.Cmp(other) < 0 }

// After reports a > other.
func (a Absolute) After(other Absolute) bool { return a.Cmp(other) > 0 }

// Time exposes the underlying time.Time, for interop with stdlib timers.
func (a Absolute) Time() time.Time { return a.t }

// Multiply scales a Relative span by an integer factor.
func (r Relative) Multiply(k int64) Relative {
	return Relative{d: time.Duration(int64(r.d) * k)}
}

// DivideInt scales a Relative span down by an integer divisor.
func (r Relative) DivideInt(k int64) Relative {
	if k == 0 {
		return r
	}
	return Relative{d: time.Duration(int64(r.d) / k)}
}

// ScaleFloat scales a Relative span by a floating point factor, used by the
// transaction-rate search loop's 0.9/1.1/1.025 step multipliers.
func (r Relative) ScaleFloat(f float64) Relative {
	return Relative{d: time.Duration(float64(r.d) * f)}
}

// DivideBy returns the integer number of times other fits into r.
func (r Relative) DivideBy(other Relative) int64 {
	if other.d == 0 {
		return 0
	}
	return int64(r.d) / int64(other.d)
}

// SleepUntil blocks until the given instant, best-effort: it may return
// slightly early since it is implemented atop time.Sleep, which itself is
// not guaranteed to sleep the exact requested duration. Callers that derive
// a latency sample from "how late did I wake up" must floor negative deltas
// at zero before recording (see internal/latency.Log.Record).
func SleepUntil(a Absolute) {
	d := a.t.Sub(time.Now())
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
