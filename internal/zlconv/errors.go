package zlconv

import "errors"

// Setup-time errors. Runtime overruns are never surfaced as errors —
// they are logged and self-heal on the next dispatch, per the engine's
// soft-failure policy.
var (
	ErrEmptyImpulseResponse = errors.New("zlconv: impulse response is empty")
	ErrInvalidBlockSize     = errors.New("zlconv: block size must be positive")
	ErrPartitionMismatch    = errors.New("zlconv: fft size must equal twice the partition's tap count")
	ErrNoChannels           = errors.New("zlconv: at least one channel is required")
)
