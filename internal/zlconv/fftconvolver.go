package zlconv

import (
	"fmt"
	"sync"
	"sync/atomic"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// FFTConvolver owns one non-head partition of the impulse response: a
// pre-transformed IR slice, an input-gather stage, a complex multiply,
// an inverse transform and an overlap-add write into the shared output
// ring. At most one invocation is ever in flight, enforced by mu and
// the queued flag.
type FFTConvolver struct {
	index    int
	fftSize  int // W_i
	half     int // W_i / 2
	priority int

	plan      *algofft.PlanRealT[float32, complex64]
	hSpectrum []complex64 // H_i, precomputed IR spectrum, length half+1

	timeScratch []float32   // gather / inverse-transform scratch, length fftSize
	freqScratch []complex64 // forward-transform / multiply scratch, length half+1

	mu     sync.Mutex // queue -> process hand-off
	queued bool
	bypass bool
	inSnap int          // captured p_in at queue time
	q      int          // output write pointer, advances by half mod m
	missed atomic.Int64 // windows dropped by a failed queue, not yet skipped by q

	x []float32
	y []float32
	m int

	writeMu *sync.Mutex // global write mutex, shared across all convolvers in a scheduler
	diag    *diagnostics
}

func newFFTConvolver(
	index, fftSize, k int,
	h []float32,
	priority int,
	x, y []float32,
	m int,
	writeMu *sync.Mutex,
	diag *diagnostics,
) (*FFTConvolver, error) {
	if fftSize != 2*len(h) {
		return nil, fmt.Errorf("%w: partition %d: fftSize=%d len(h)=%d", ErrPartitionMismatch, index, fftSize, len(h))
	}

	half := fftSize / 2

	plan, err := algofft.NewPlanReal32(fftSize)
	if err != nil {
		return nil, fmt.Errorf("zlconv: partition %d: fft plan: %w", index, err)
	}

	c := &FFTConvolver{
		index:       index,
		fftSize:     fftSize,
		half:        half,
		priority:    priority,
		plan:        plan,
		hSpectrum:   make([]complex64, half+1),
		timeScratch: make([]float32, fftSize),
		freqScratch: make([]complex64, half+1),
		q:           k,
		x:           x,
		y:           y,
		m:           m,
		writeMu:     writeMu,
		diag:        diag,
	}

	padded := make([]float32, fftSize)
	copy(padded[:half], h)
	if err := plan.Forward(c.hSpectrum, padded); err != nil {
		return nil, fmt.Errorf("zlconv: partition %d: forward fft of impulse response: %w", index, err)
	}

	return c, nil
}

// FFTSize returns W_i.
func (c *FFTConvolver) FFTSize() int { return c.fftSize }

// HalfSize returns W_i / 2.
func (c *FFTConvolver) HalfSize() int { return c.half }

// Priority returns the priority this convolver's worker was registered with.
func (c *FFTConvolver) Priority() int { return c.priority }

// queue attempts a non-blocking hand-off of the current input window to
// the worker. It returns false if the previous invocation is still
// running — an overload indicator, not a correctness failure: the
// dropped window is counted, and the next process() advances q past it
// so later windows stay aligned with the counter arithmetic.
func (c *FFTConvolver) queue(pInSnapshot int, bypass bool) bool {
	if !c.mu.TryLock() {
		c.missed.Add(1)
		c.diag.notReady(c.index)
		return false
	}
	c.inSnap = pInSnapshot
	c.bypass = bypass
	c.queued = true
	c.mu.Unlock()
	return true
}

// process runs on the convolver's worker goroutine once scheduled.
func (c *FFTConvolver) process() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Skip q past every window whose dispatch a failed queue dropped, so
	// this window's output lands at its own time slot.
	if n := c.missed.Swap(0); n > 0 {
		c.q = (c.q + int(n)*c.half) % c.m
	}

	if c.bypass {
		// Still advance q so later partitions stay time-aligned when
		// this block is re-enabled.
		c.q = (c.q + c.half) % c.m
		c.queued = false
		return
	}

	for n := 0; n < c.half; n++ {
		idx := ((c.inSnap-c.half+n)%c.m + c.m) % c.m
		c.timeScratch[n] = c.x[idx]
	}
	for n := c.half; n < c.fftSize; n++ {
		c.timeScratch[n] = 0
	}

	if err := c.plan.Forward(c.freqScratch, c.timeScratch); err != nil {
		c.diag.forwardFFTFailed(c.index, err)
		c.q = (c.q + c.half) % c.m
		c.queued = false
		return
	}

	// Real-FFT bins already carry Hermitian symmetry implicitly (only
	// the non-redundant half is stored), so a plain bin-wise complex
	// multiply is the correct application of H_i in the frequency
	// domain — no manual mirroring needed.
	for n := range c.freqScratch {
		c.freqScratch[n] *= c.hSpectrum[n]
	}

	if err := c.plan.Inverse(c.timeScratch, c.freqScratch); err != nil {
		c.diag.inverseFFTFailed(c.index, err)
		c.q = (c.q + c.half) % c.m
		c.queued = false
		return
	}

	c.writeMu.Lock()
	for n := 0; n < c.fftSize; n++ {
		idx := (c.q + n) % c.m
		c.y[idx] += c.timeScratch[n]
	}
	c.writeMu.Unlock()

	c.q = (c.q + c.half) % c.m
	c.queued = false
}
