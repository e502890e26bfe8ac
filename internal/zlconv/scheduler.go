package zlconv

import (
	"fmt"
	"log/slog"
	"sync"
)

// DefaultBasePriority is the base priority P from which partition i's
// worker priority P - i is derived, so partition 1's worker runs at
// P - 1 and each subsequent partition one below it. It sits below an
// audio-callback-equivalent priority and
// above ordinary background work in any concrete WorkerPool that maps
// it onto real OS priorities.
const DefaultBasePriority = 50

// Config configures a Scheduler.
type Config struct {
	BlockSize     int
	SampleRate    float64
	MaxKernelSize int
	BasePriority  int // 0 selects DefaultBasePriority
	Logger        *slog.Logger
	Pool          WorkerPool // nil selects the default goroutine pool
	Name          string     // namespaces worker task names for diagnostics
}

// Scheduler is the ZL Convolver: it holds the input and output circular
// buffers, the partition plan, the convolver bank, the per-partition
// sample counters, and drives the per-sample dispatch loop on the
// calling (audio) thread.
type Scheduler struct {
	plan PartitionPlan

	x []float32
	y []float32
	m int

	pIn  int
	pOut int

	direct *DirectConvolver
	fft    []*FFTConvolver // fft[i] backs Partitions[i] for i >= 1; fft[0] is nil

	counters []int // c_i

	writeMu sync.Mutex

	pool    WorkerPool
	taskIDs []int
	diag    *diagnostics
}

// NewScheduler builds the partition plan for ir, allocates the input
// and output rings, instantiates the direct convolver and the FFT
// convolver bank, and registers one worker task per FFT convolver with
// the configured pool.
func NewScheduler(cfg Config, ir []float32) (*Scheduler, error) {
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, cfg.BlockSize)
	}
	if cfg.MaxKernelSize > 0 && len(ir) > cfg.MaxKernelSize {
		ir = ir[:cfg.MaxKernelSize]
	}
	if len(ir) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	basePriority := cfg.BasePriority
	if basePriority == 0 {
		basePriority = DefaultBasePriority
	}

	plan := buildPartitionPlan(cfg.BlockSize, len(ir))

	pool := cfg.Pool
	if pool == nil {
		gp, err := newGoroutinePool()
		if err != nil {
			return nil, fmt.Errorf("zlconv: creating worker pool: %w", err)
		}
		pool = gp
	}

	diag := newDiagnostics(cfg.Logger)

	s := &Scheduler{
		plan: plan,
		x:    make([]float32, plan.M),
		y:    make([]float32, plan.M),
		m:    plan.M,
		pOut: plan.M - plan.A,
		pool: pool,
		diag: diag,
	}

	s.fft = make([]*FFTConvolver, len(plan.Partitions))
	s.counters = make([]int, len(plan.Partitions))
	s.taskIDs = make([]int, len(plan.Partitions))

	for _, p := range plan.Partitions {
		h := gatherTaps(ir, p)
		priority := basePriority - p.Index

		if p.Direct {
			s.direct = newDirectConvolver(h, p.Offset, s.x, s.y, s.m)
			diag.setupSummary(p, priority)
			continue
		}

		conv, err := newFFTConvolver(p.Index, p.WindowSize, p.Offset, h, priority, s.x, s.y, s.m, &s.writeMu, diag)
		if err != nil {
			return nil, err
		}
		s.fft[p.Index] = conv

		name := fmt.Sprintf("%s/partition-%d", cfg.Name, p.Index)
		taskID, err := pool.Register(name, priority, s.makeWorker(p.Index))
		if err != nil {
			return nil, fmt.Errorf("zlconv: registering worker for partition %d: %w", p.Index, err)
		}
		s.taskIDs[p.Index] = taskID

		diag.setupSummary(p, priority)
	}

	diag.logger.Info("partition plan built",
		"partitions", len(plan.Partitions), "N", plan.N, "latencyPad", plan.A)

	return s, nil
}

// gatherTaps copies the IR coefficients partition p owns, zero-padding
// the tail when ir is shorter than the partition's half-window.
func gatherTaps(ir []float32, p Partition) []float32 {
	h := make([]float32, p.HalfSize())
	if p.Offset >= len(ir) {
		return h
	}
	stop := p.Offset + p.HalfSize()
	if stop > len(ir) {
		stop = len(ir)
	}
	copy(h, ir[p.Offset:stop])
	return h
}

func (s *Scheduler) makeWorker(index int) func() {
	return func() { s.fft[index].process() }
}

// Plan returns the partition plan this scheduler was built from.
func (s *Scheduler) Plan() PartitionPlan { return s.plan }

// NotReadyCount returns the number of worker overruns observed so far.
func (s *Scheduler) NotReadyCount() int64 { return s.diag.NotReadyCount() }

// Process advances the engine by one input sample and returns the
// corresponding output sample.
//
// maxBlocks bypasses any FFT partition whose index exceeds it; sparsity
// periodically bypasses a fraction of partitions with a period that
// tightens as sparsity approaches 1.
//
// The dispatch loop covers every FFT partition from index 1 upward, so
// together with the direct head the partitions cover the whole impulse
// response — see DESIGN.md for the open-question discussion.
func (s *Scheduler) Process(in float32, maxBlocks int, sparsity float64) float32 {
	s.x[s.pIn] = in
	s.pIn = (s.pIn + 1) % s.m

	if s.direct != nil {
		s.direct.process(s.pIn)
	}

	total := len(s.plan.Partitions)
	for i := 1; i < total; i++ {
		conv := s.fft[i]
		if conv == nil {
			continue
		}

		bypass := i > maxBlocks
		if !bypass && sparsity > 0 {
			period := int((1-sparsity)*float64(total)/2) + 1
			if i%period == 0 {
				bypass = true
			}
		}

		s.counters[i]++
		if s.counters[i] == conv.HalfSize() {
			if conv.queue(s.pIn, bypass) {
				s.pool.Schedule(s.taskIDs[i])
			}
			s.counters[i] = 0
		}
	}

	out := s.y[s.pOut]
	s.y[s.pOut] = 0
	s.pOut = (s.pOut + 1) % s.m
	return out
}

// Close releases the scheduler's worker pool and diagnostic goroutine.
func (s *Scheduler) Close() error {
	s.diag.close()
	return s.pool.Close()
}
