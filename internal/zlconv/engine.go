package zlconv

import (
	"fmt"
	"log/slog"
)

// priorityBandPerChannel reserves enough priority values that one
// channel's partitions never collide with a neighboring channel's when
// both are scheduled through pools that share a real OS priority space.
const priorityBandPerChannel = 128

// EngineConfig configures a multi-channel Engine.
type EngineConfig struct {
	BlockSize     int
	SampleRate    float64
	MaxKernelSize int
	BasePriority  int
	Logger        *slog.Logger
	NewPool       func(channel int) WorkerPool // nil selects goroutine pools
	Name          string
}

// Engine supervises one Scheduler per audio channel, each with its own
// impulse response and its own priority band, so independent channels
// (e.g. stereo) can run concurrently without their workers competing
// for the same priority slots.
type Engine struct {
	channels []*Scheduler
}

// NewEngine builds one Scheduler per entry of irsPerChannel.
func NewEngine(cfg EngineConfig, irsPerChannel [][]float32) (*Engine, error) {
	if len(irsPerChannel) == 0 {
		return nil, ErrNoChannels
	}

	basePriority := cfg.BasePriority
	if basePriority == 0 {
		basePriority = DefaultBasePriority
	}

	e := &Engine{channels: make([]*Scheduler, len(irsPerChannel))}
	for ch, ir := range irsPerChannel {
		var pool WorkerPool
		if cfg.NewPool != nil {
			pool = cfg.NewPool(ch)
		}

		sc, err := NewScheduler(Config{
			BlockSize:     cfg.BlockSize,
			SampleRate:    cfg.SampleRate,
			MaxKernelSize: cfg.MaxKernelSize,
			BasePriority:  basePriority - ch*priorityBandPerChannel,
			Logger:        cfg.Logger,
			Pool:          pool,
			Name:          fmt.Sprintf("%s/ch%d", cfg.Name, ch),
		}, ir)
		if err != nil {
			return nil, fmt.Errorf("zlconv: channel %d: %w", ch, err)
		}
		e.channels[ch] = sc
	}
	return e, nil
}

// Process runs one interleaved multi-channel sample through the
// engine, one Scheduler.Process call per channel.
func (e *Engine) Process(in []float32, maxBlocks int, sparsity float64) []float32 {
	out := make([]float32, len(e.channels))
	for ch, sc := range e.channels {
		var sample float32
		if ch < len(in) {
			sample = in[ch]
		}
		out[ch] = sc.Process(sample, maxBlocks, sparsity)
	}
	return out
}

// Channels returns the number of channels this engine supervises.
func (e *Engine) Channels() int { return len(e.channels) }

// Channel returns the Scheduler for channel i.
func (e *Engine) Channel(i int) *Scheduler { return e.channels[i] }

// Close releases every channel's worker pool and diagnostics goroutine.
func (e *Engine) Close() error {
	var firstErr error
	for _, sc := range e.channels {
		if err := sc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
