// Package zlconv implements a real-time, zero-latency partitioned
// convolution engine. A long impulse response is decomposed into a
// direct-form head, processed inline on the calling thread, and a bank
// of FFT convolvers of exponentially increasing window size, dispatched
// on priority-ordered background workers as their input windows fill.
// Per-sample CPU cost on the calling thread stays bounded regardless of
// impulse response length, while the overall algorithmic latency stays
// zero: the fixed pipeline delay is paid once at start-up, not per
// block.
//
// See DESIGN.md at the module root for the partition size schedule, the
// ring buffer layout and the concurrency model this package implements.
package zlconv
