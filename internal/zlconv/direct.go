package zlconv

// DirectConvolver computes the contribution of the first partition's IR
// taps at zero processing latency, entirely inline on the calling
// (audio) thread: no FFT, no block-wait. For a very short first block
// the time-domain form is cheaper than an FFT of size 2N and, more
// importantly, never makes the caller wait for a worker.
type DirectConvolver struct {
	h []float32 // taps, length W_0/2, in increasing lag order
	q int        // output write pointer, advances by one sample per call

	x []float32
	y []float32
	m int
}

func newDirectConvolver(h []float32, k int, x, y []float32, m int) *DirectConvolver {
	taps := make([]float32, len(h))
	copy(taps, h)
	return &DirectConvolver{h: taps, q: k, x: x, y: y, m: m}
}

// process convolves the taps against the input ring ending at the
// sample just written at pIn-1, and adds the single resulting sample
// into the output ring at q, advancing q by one sample modulo m.
func (c *DirectConvolver) process(pIn int) {
	var acc float32
	for lag, tap := range c.h {
		idx := ((pIn-1-lag)%c.m + c.m) % c.m
		acc += tap * c.x[idx]
	}
	c.y[c.q] += acc
	c.q = (c.q + 1) % c.m
}
