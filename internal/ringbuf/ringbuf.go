// Package ringbuf provides a fixed-capacity sliding window of float64 values.
// Pushing into a full window overwrites the oldest value, which is what every
// rolling indicator (SMA, standard deviation, rolling minimum) needs.
package ringbuf

import "math"

// Window keeps the most recent Cap() values pushed into it.
// Not safe for concurrent use; each indicator owns its window.
type Window struct {
	buf   []float64
	head  int // next write position
	count int // values currently held, <= len(buf)
	sum   float64
}

// New creates a window holding up to size values. Minimum size is 1.
func New(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]float64, size)}
}

// Push appends v, evicting the oldest value when the window is full.
// Returns the evicted value and whether one was evicted.
func (w *Window) Push(v float64) (evicted float64, ok bool) {
	if w.count == len(w.buf) {
		evicted, ok = w.buf[w.head], true
		w.sum -= evicted
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % len(w.buf)
	return evicted, ok
}

// Len returns the number of values held.
func (w *Window) Len() int { return w.count }

// Cap returns the window size.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap() values.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// At returns the i-th held value, 0 being the oldest.
func (w *Window) At(i int) float64 {
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	return w.buf[(start+i)%len(w.buf)]
}

// Sum returns the running sum of the held values.
func (w *Window) Sum() float64 { return w.sum }

// Mean returns the arithmetic mean of the held values. Returns 0 when empty.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Min returns the smallest held value. Returns +Inf when empty.
func (w *Window) Min() float64 {
	m := math.Inf(1)
	for i := 0; i < w.count; i++ {
		if v := w.At(i); v < m {
			m = v
		}
	}
	return m
}

// PopStdDev returns the population standard deviation around mean.
// The two-pass form keeps precision for prices with large magnitudes.
func (w *Window) PopStdDev(mean float64) float64 {
	if w.count == 0 {
		return 0
	}
	var ss float64
	for i := 0; i < w.count; i++ {
		d := w.At(i) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.count))
}

// Reset empties the window for reuse.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
	w.sum = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}
