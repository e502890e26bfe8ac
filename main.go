// Command zeroverb is the interactive front end for the zero-latency
// partitioned convolution engine: it drives a ConvolutionReverb from an
// impulse response library, exposes its parameters through a terminal
// UI and/or a browser dashboard, and (outside of interactive use)
// processes a fixed audio buffer through it in place. There is no
// PipeWire or other live audio device binding here — that's external
// hardware/OS integration outside this engine's scope; cmd/zlconv
// covers pure offline file-in/file-out processing, and this binary
// covers parameter exploration against a running engine instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zeroverb/dsp"
	"zeroverb/pkg/irformat"
	"zeroverb/web"
)

//nolint:gochecknoglobals // shared engine instance driving the TUI, web dashboard and tests
var reverb *dsp.ConvolutionReverb

func main() {
	irLibraryPath := flag.String("ir-library", "", "path to an .irlib impulse response library")
	irName := flag.String("ir-name", "", "initial IR name to load from the library")
	irIndex := flag.Int("ir-index", 0, "initial IR index to load from the library")
	sampleRate := flag.Float64("sample-rate", 48000, "processing sample rate in Hz")
	channels := flag.Int("channels", 2, "number of channels")
	blockSize := flag.Int("block-size", 256, "processing block size in samples")
	webPort := flag.Int("web-port", 0, "if nonzero, serve the browser dashboard on this port")
	noTUI := flag.Bool("no-tui", false, "disable the terminal UI (useful when only -web-port is wanted)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	reverb = dsp.NewConvolutionReverb(*sampleRate, *channels, *blockSize)
	defer reverb.Close()

	var irLibraryData []byte
	var irList []irformat.IndexEntry
	if *irLibraryPath != "" {
		data, err := os.ReadFile(*irLibraryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: reading IR library: %v\n", err)
			os.Exit(1)
		}
		irLibraryData = data

		entries, err := dsp.ListLibraryIRs(irLibraryData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: reading IR library index: %v\n", err)
			os.Exit(1)
		}
		irList = entries

		if _, err := reverb.LoadImpulseResponseFromLibrary(irLibraryData, *irName, *irIndex); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: loading initial impulse response: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := reverb.LoadImpulseResponse(""); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: loading synthetic impulse response: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var webServer *web.Server
	if *webPort != 0 {
		webServer = web.NewServer(reverb, irLibraryData, web.IREntriesFromIndex(irList), *webPort, *irIndex, *irName)
		go func() {
			if err := webServer.Start(); err != nil {
				slog.Error("web server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webServer.Shutdown(shutdownCtx)
		}()
	}

	if *noTUI {
		<-ctx.Done()
		return
	}

	runTUI(reverb, irLibraryData, irList, *irIndex)
}

// processAudioBuffer runs an interleaved multi-channel buffer through
// the shared reverb instance in place, one sample at a time per
// channel, mirroring how a fixed-size hardware callback would drive
// the engine.
func processAudioBuffer(buf []float32) {
	channels := reverb.Channels()
	if channels == 0 {
		return
	}
	frames := len(buf) / channels
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			idx := i*channels + ch
			buf[idx] = reverb.ProcessSample(buf[idx], ch)
		}
	}
}
