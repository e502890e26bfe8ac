package zlconv

import (
	"log/slog"
	"sync/atomic"
)

// diagKind identifies the shape of a diagnostic event.
type diagKind int

const (
	diagNotReady diagKind = iota
	diagForwardFFTFailed
	diagInverseFFTFailed
)

type diagnostic struct {
	kind      diagKind
	partition int
	err       error
}

// diagnostics is the real-time-safe printf-like primitive from the
// design: producers on the audio thread or a worker thread never block
// on I/O — they push a fixed-size event onto a bounded channel, and a
// single background goroutine drains it into slog. A full channel drops
// the event rather than blocking the producer, since diagnostics are
// best-effort by nature.
type diagnostics struct {
	ch        chan diagnostic
	logger    *slog.Logger
	done      chan struct{}
	notReadyN atomic.Int64
}

func newDiagnostics(logger *slog.Logger) *diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	d := &diagnostics{
		ch:     make(chan diagnostic, 256),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *diagnostics) run() {
	defer close(d.done)
	for ev := range d.ch {
		switch ev.kind {
		case diagNotReady:
			d.logger.Warn("not ready", "partition", ev.partition)
		case diagForwardFFTFailed:
			d.logger.Error("forward fft failed", "partition", ev.partition, "error", ev.err)
		case diagInverseFFTFailed:
			d.logger.Error("inverse fft failed", "partition", ev.partition, "error", ev.err)
		}
	}
}

func (d *diagnostics) push(ev diagnostic) {
	select {
	case d.ch <- ev:
	default:
	}
}

func (d *diagnostics) notReady(partition int) {
	d.notReadyN.Add(1)
	d.push(diagnostic{kind: diagNotReady, partition: partition})
}

func (d *diagnostics) forwardFFTFailed(partition int, err error) {
	d.push(diagnostic{kind: diagForwardFFTFailed, partition: partition, err: err})
}

func (d *diagnostics) inverseFFTFailed(partition int, err error) {
	d.push(diagnostic{kind: diagInverseFFTFailed, partition: partition, err: err})
}

// NotReadyCount returns the number of times a worker was still
// processing its previous window when the scheduler tried to queue it.
func (d *diagnostics) NotReadyCount() int64 {
	return d.notReadyN.Load()
}

func (d *diagnostics) setupSummary(p Partition, priority int) {
	d.logger.Info("partition configured",
		"index", p.Index,
		"window", p.WindowSize,
		"priority", priority,
		"samplesRead", p.HalfSize(),
		"k", p.Offset,
		"direct", p.Direct,
	)
}

func (d *diagnostics) close() {
	close(d.ch)
	<-d.done
}
