package dsp

import (
	"bytes"
	"fmt"

	"zeroverb/pkg/irformat"
)

// ListLibraryIRs returns the index entries of every impulse response in
// an in-memory IR library, without decoding any audio data.
func ListLibraryIRs(libraryData []byte) ([]irformat.IndexEntry, error) {
	reader, err := irformat.NewReader(bytes.NewReader(libraryData))
	if err != nil {
		return nil, fmt.Errorf("dsp: reading IR library: %w", err)
	}
	defer reader.Close()
	return reader.ListIRs(), nil
}

// LoadImpulseResponseFromLibrary decodes one impulse response from an
// in-memory library (selected by name when non-empty, else by index)
// and rebuilds the zero-latency engine around it. It returns the
// loaded IR's name.
func (r *ConvolutionReverb) LoadImpulseResponseFromLibrary(libraryData []byte, name string, index int) (string, error) {
	reader, err := irformat.NewReader(bytes.NewReader(libraryData))
	if err != nil {
		return "", fmt.Errorf("dsp: reading IR library: %w", err)
	}
	defer reader.Close()

	var ir *irformat.ImpulseResponse
	if name != "" {
		ir, err = reader.LoadIRByName(name)
	} else {
		ir, err = reader.LoadIR(index)
	}
	if err != nil {
		return "", err
	}

	if err := r.LoadImpulseResponseSamplesAtRate(ir.Audio.Data, ir.Metadata.SampleRate); err != nil {
		return "", err
	}
	return ir.Metadata.Name, nil
}
