// Command zlconv drives the zero-latency partitioned convolution engine
// offline: it loads an impulse response, feeds it a synthetic or
// AIFF-decoded input signal, and writes the processed result as raw
// interleaved float32 PCM. It replaces the PipeWire-bound reverb
// process as this repository's runnable entry point — real-time audio
// device binding is external hardware/OS integration outside this
// engine's scope. Input and file-based impulse responses are decoded
// from AIFF only (impulse responses may also come from an .irlib
// library); WAV files are not read.
//
// Usage:
//
//	zlconv -ir hall.irlib -ir-name "Large Hall" -in dry.aif -out wet.pcm
//	zlconv -ir plate.aif -impulse -samples 96000 -out ir_check.pcm
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"

	"zeroverb/dsp"
	"zeroverb/internal/aiff"
	"zeroverb/pkg/irformat"
)

func main() {
	irPath := flag.String("ir", "", "path to impulse response (.irlib or .aif/.aiff)")
	irName := flag.String("ir-name", "", "IR name to select from an .irlib library")
	irIndex := flag.Int("ir-index", 0, "IR index to select from an .irlib library")
	sampleRate := flag.Float64("sample-rate", 0, "processing sample rate in Hz; defaults to the input signal's rate, or the IR's rate if -in is not given (the IR is resampled to this rate if they differ)")
	blockSize := flag.Int("block-size", 256, "processing block size in samples (sets the engine's latency pad)")
	maxKernel := flag.Int("max-kernel", 0, "truncate the impulse response to at most this many samples per channel before building the engine (0 = no truncation)")
	maxBlocks := flag.Int("max-blocks", 1<<30, "highest FFT partition index that may contribute (0 = direct-form head only)")
	sparsity := flag.Float64("sparsity", 0, "periodic partition dropout fraction in [0,1]")
	wetLevel := flag.Float64("wet", 1.0, "wet (reverb) mix level")
	dryLevel := flag.Float64("dry", 0.0, "dry (direct) mix level")
	inPath := flag.String("in", "", "input signal (.aif/.aiff); if empty, a synthetic signal is generated")
	samples := flag.Int("samples", 48000, "length of the synthetic input signal when -in is not given")
	impulse := flag.Bool("impulse", false, "use a unit impulse as the synthetic input instead of white noise")
	outPath := flag.String("out", "", "output path for raw interleaved float32 little-endian PCM")
	logPath := flag.String("log", "", "log file path; empty logs to stderr")
	showHelp := flag.Bool("help", false, "show this help message")

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, nil))
	}
	slog.SetDefault(logger)

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -out is required")
		flag.Usage()
		os.Exit(1)
	}

	ir, irRate, err := loadImpulseResponse(*irPath, *irName, *irIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: loading impulse response: %v\n", err)
		os.Exit(1)
	}
	channels := len(ir)
	slog.Info("impulse response loaded", "path", *irPath, "channels", channels, "sampleRate", irRate)

	in, inRate, err := loadInput(*inPath, *samples, channels, *impulse, irRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: loading input signal: %v\n", err)
		os.Exit(1)
	}

	rate := *sampleRate
	if rate <= 0 {
		rate = inRate
	}

	reverb := dsp.NewConvolutionReverb(rate, channels, *blockSize)
	reverb.SetMaxKernelSize(*maxKernel)
	if err := reverb.LoadImpulseResponseSamplesAtRate(ir, irRate); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: building engine: %v\n", err)
		os.Exit(1)
	}
	defer reverb.Close()
	slog.Info("engine built", "maxKernelSize", *maxKernel)

	reverb.SetWetLevel(*wetLevel)
	reverb.SetDryLevel(*dryLevel)
	reverb.SetMaxBlocks(*maxBlocks)
	reverb.SetSparsity(*sparsity)

	frames := len(in[0])
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for ch := 0; ch < channels; ch++ {
		reverb.ProcessBlock(in[ch], out[ch], ch)
	}
	slog.Info("processing complete", "frames", frames, "channels", channels)

	if err := writeInterleavedPCM(*outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: writing output: %v\n", err)
		os.Exit(1)
	}
	slog.Info("output written", "path", *outPath)
}

// loadImpulseResponse decodes -ir into a per-channel float32 impulse
// response. This CLI does not offer dsp.ConvolutionReverb's synthetic
// exponential-decay placeholder IR, so -ir is mandatory here.
func loadImpulseResponse(path, name string, index int) ([][]float32, float64, error) {
	if path == "" {
		return nil, 0, errors.New("zlconv: -ir is required")
	}

	if strings.HasSuffix(strings.ToLower(path), ".irlib") {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()

		reader, err := irformat.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("reading library header: %w", err)
		}
		defer reader.Close()

		var ir *irformat.ImpulseResponse
		if name != "" {
			ir, err = reader.LoadIRByName(name)
		} else {
			ir, err = reader.LoadIR(index)
		}
		if err != nil {
			return nil, 0, err
		}
		return ir.Audio.Data, ir.Metadata.SampleRate, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	parsed, err := aiff.Parse(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing AIFF: %w", err)
	}
	return parsed.Data, parsed.SampleRate, nil
}

// loadInput decodes -in, or generates a synthetic signal when it is
// empty: a unit impulse (for delay/impulse-response verification) or
// white noise. fallbackRate is used as the synthetic signal's
// rate, since it has no file header to read one from.
func loadInput(path string, syntheticLen, channels int, impulse bool, fallbackRate float64) ([][]float32, float64, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()

		parsed, err := aiff.Parse(f)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing AIFF: %w", err)
		}
		data := parsed.Data
		for len(data) < channels {
			data = append(data, data[0])
		}
		return data[:channels], parsed.SampleRate, nil
	}

	if syntheticLen <= 0 {
		return nil, 0, errors.New("zlconv: -samples must be positive")
	}

	in := make([][]float32, channels)
	rng := rand.New(rand.NewSource(1))
	for ch := range in {
		x := make([]float32, syntheticLen)
		if impulse {
			x[0] = 1
		} else {
			for i := range x {
				x[i] = float32(rng.NormFloat64()) * 0.1
			}
		}
		in[ch] = x
	}
	return in, fallbackRate, nil
}

// writeInterleavedPCM writes out as raw interleaved float32
// little-endian samples, the simplest format that round-trips cleanly
// through any numerical tool without a container format's edge cases.
func writeInterleavedPCM(path string, out [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	channels := len(out)
	if channels == 0 {
		return nil
	}
	frames := len(out[0])

	buf := make([]byte, 4*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			bits := math.Float32bits(out[ch][i])
			binary.LittleEndian.PutUint32(buf[ch*4:ch*4+4], bits)
		}
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
