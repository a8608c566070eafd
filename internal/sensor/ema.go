// Package sensor — ema.go
//
// Exponential moving average filter applied to position and heading
// channels before publish.
package sensor

// EMA_N is the smoothing window.
const EMA_N = 10

// emaK is the fixed smoothing constant K = 2/(N+1).
const emaK = 2.0 / float64(EMA_N+1)

// Filter is a single-channel exponential moving average. The zero value is
// ready for use: its first Update seeds it from raw.
type Filter struct {
	value float64
	ready bool
}

// Update applies ema_next = (raw - ema_prev) * K + ema_prev. The first call
// seeds the filter directly from raw, to avoid a start-up transient from
// an implicit zero baseline.
func (f *Filter) Update(raw float64) float64 {
	if !f.ready {
		f.value = raw
		f.ready = true
		return f.value
	}
	f.value = (raw-f.value)*emaK + f.value
	return f.value
}

// Reset clears the filter so the next Update reseeds it from raw.
func (f *Filter) Reset() {
	f.value = 0
	f.ready = false
}
