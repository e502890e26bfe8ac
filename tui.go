package main

import (
	"fmt"
	"time"

	"github.com/nsf/termbox-go"
	"zeroverb/dsp"
	"zeroverb/pkg/irformat"
)

const (
	colDef     = termbox.ColorDefault
	colWhite   = termbox.ColorWhite
	colRed     = termbox.ColorRed
	colGreen   = termbox.ColorGreen
	colYellow  = termbox.ColorYellow
	colBlue    = termbox.ColorBlue
	colCyan    = termbox.ColorCyan
	colMagenta = termbox.ColorMagenta
)

type TUIState struct {
	selectedParam int
	reverb        *dsp.ConvolutionReverb
	exit          bool

	// IR library data
	irLibraryData []byte               // in-memory IR library bytes
	irList        []irformat.IndexEntry
	currentIRIdx  int
	currentIRName string
	irBrowseMode  bool
	irBrowseIdx   int
}

var paramNames = []string{
	"Impulse Response",
	"Wet Level (0-1)",
	"Dry Level (0-1)",
	"Max Blocks",
	"Sparsity (0-1)",
}

func runTUI(reverb *dsp.ConvolutionReverb, irLibraryData []byte, irList []irformat.IndexEntry, initialIRIdx int) {
	err := termbox.Init()
	if err != nil {
		//nolint:forbidigo // TUI initialization error requires direct output
		fmt.Printf("Failed to initialize TUI: %v\n", err)
		return
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	initialName := ""
	if initialIRIdx >= 0 && initialIRIdx < len(irList) {
		initialName = irList[initialIRIdx].Name
	}

	state := &TUIState{
		reverb:        reverb,
		irLibraryData: irLibraryData,
		irList:        irList,
		currentIRIdx:  initialIRIdx,
		currentIRName: initialName,
		irBrowseIdx:   initialIRIdx,
	}

	eventQueue := make(chan termbox.Event)

	go func() {
		for {
			eventQueue <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	draw(state)

	for !state.exit {
		select {
		case ev := <-eventQueue:
			switch ev.Type {
			case termbox.EventKey:
				handleKey(ev, state)
			case termbox.EventResize:
				draw(state)
			}
		case <-ticker.C:
			draw(state)
		}
	}
}

func handleKey(ev termbox.Event, s *TUIState) {
	if s.irBrowseMode {
		handleIRBrowseKey(ev, s)
		return
	}

	if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
		s.exit = true
		return
	}

	switch ev.Key {
	case termbox.KeyArrowUp:
		s.selectedParam--
		if s.selectedParam < 0 {
			s.selectedParam = len(paramNames) - 1
		}
	case termbox.KeyArrowDown:
		s.selectedParam++
		if s.selectedParam >= len(paramNames) {
			s.selectedParam = 0
		}
	}

	switch s.selectedParam {
	case 0: // Impulse Response - enter browse mode
		if ev.Key == termbox.KeyArrowRight || ev.Key == termbox.KeyArrowLeft || ev.Key == termbox.KeyEnter {
			if len(s.irList) > 0 {
				s.irBrowseMode = true
				s.irBrowseIdx = s.currentIRIdx
			}
		}
	case 1: // Wet Level
		if delta := arrowDelta(ev, 0.05); delta != 0 {
			s.reverb.SetWetLevel(s.reverb.GetWetLevel() + delta)
		}
	case 2: // Dry Level
		if delta := arrowDelta(ev, 0.05); delta != 0 {
			s.reverb.SetDryLevel(s.reverb.GetDryLevel() + delta)
		}
	case 3: // Max Blocks
		if delta := arrowDelta(ev, 1); delta != 0 {
			n := s.reverb.GetMaxBlocks() + int(delta)
			if n < 0 {
				n = 0
			}
			s.reverb.SetMaxBlocks(n)
		}
	case 4: // Sparsity
		if delta := arrowDelta(ev, 0.05); delta != 0 {
			s.reverb.SetSparsity(s.reverb.GetSparsity() + delta)
		}
	}
}

func arrowDelta(ev termbox.Event, step float64) float64 {
	switch ev.Key {
	case termbox.KeyArrowRight:
		return step
	case termbox.KeyArrowLeft:
		return -step
	default:
		return 0
	}
}

func handleIRBrowseKey(ev termbox.Event, s *TUIState) {
	switch ev.Key {
	case termbox.KeyEsc:
		s.irBrowseMode = false
		s.irBrowseIdx = s.currentIRIdx
	case termbox.KeyEnter:
		if s.irBrowseIdx != s.currentIRIdx && len(s.irLibraryData) > 0 {
			name, err := s.reverb.LoadImpulseResponseFromLibrary(s.irLibraryData, "", s.irBrowseIdx)
			if err == nil {
				s.currentIRIdx = s.irBrowseIdx
				s.currentIRName = name
			}
		}
		s.irBrowseMode = false
	case termbox.KeyArrowUp:
		s.irBrowseIdx--
		if s.irBrowseIdx < 0 {
			s.irBrowseIdx = len(s.irList) - 1
		}
	case termbox.KeyArrowDown:
		s.irBrowseIdx++
		if s.irBrowseIdx >= len(s.irList) {
			s.irBrowseIdx = 0
		}
	case termbox.KeyPgup:
		s.irBrowseIdx -= 10
		if s.irBrowseIdx < 0 {
			s.irBrowseIdx = 0
		}
	case termbox.KeyPgdn:
		s.irBrowseIdx += 10
		if s.irBrowseIdx >= len(s.irList) {
			s.irBrowseIdx = len(s.irList) - 1
		}
	}
}

func draw(state *TUIState) {
	_ = termbox.Clear(colDef, colDef)

	if state.irBrowseMode {
		drawIRBrowser(state)
		return
	}

	printTB(0, 0, colCyan, colDef, "Zero-Latency Convolution Reverb - Interactive Mode")
	printTB(0, 1, colWhite, colDef, fmt.Sprintf("Latency: %d samples", state.reverb.LatencySamples(0)))
	printTB(0, 2, colDef, colDef, "Use Arrows to navigate/adjust. 'q' or Esc to quit.")
	printTB(0, 3, colDef, colDef, "----------------------------------------------------")

	irDisplayName := state.currentIRName
	if irDisplayName == "" {
		irDisplayName = "(none)"
	}
	if len(irDisplayName) > 30 {
		irDisplayName = irDisplayName[:27] + "..."
	}

	vals := []string{
		irDisplayName,
		fmt.Sprintf("%.2f", state.reverb.GetWetLevel()),
		fmt.Sprintf("%.2f", state.reverb.GetDryLevel()),
		fmt.Sprintf("%d", state.reverb.GetMaxBlocks()),
		fmt.Sprintf("%.2f", state.reverb.GetSparsity()),
	}

	for i, name := range paramNames {
		col := colWhite
		bgColor := colDef
		prefix := "  "

		if i == state.selectedParam {
			col = colDef
			bgColor = colWhite
			prefix = "> "
		}

		line := fmt.Sprintf("%-22s %s", prefix+name, vals[i])
		printTB(0, 5+i, col, bgColor, line)

		if i == 0 && i == state.selectedParam && len(state.irList) > 0 {
			printTB(len(line)+2, 5+i, colYellow, colDef, "[Enter to browse]")
		}
	}

	// Diagnostics: partition bank shape and worker overrun counters,
	// pulled straight from the internal/zlconv scheduler behind each
	// channel rather than a synthetic level meter.
	diagY := 12
	printTB(0, diagY, colYellow, colDef, "Diagnostics:")
	printTB(2, diagY+1, colDef, colDef, fmt.Sprintf("Partitions: %d", state.reverb.PartitionCount(0)))

	for ch := 0; ch < 2; ch++ {
		_, _, overruns := state.reverb.GetMetrics(ch)
		label := fmt.Sprintf("Ch%d overruns", ch)
		drawCounter(diagY+3+ch, label, int(overruns), colGreen, colRed)
	}

	termbox.Flush()
}

func drawIRBrowser(state *TUIState) {
	w, h := termbox.Size()

	printTB(0, 0, colMagenta, colDef, "Select Impulse Response")
	printTB(0, 1, colDef, colDef, "Use Up/Down to browse, PgUp/PgDn for fast scroll")
	printTB(0, 2, colDef, colDef, "Enter to select, Esc to cancel")
	printTB(0, 3, colDef, colDef, "─────────────────────────────────────────────────────────────────")

	listStartY := 5
	listHeight := h - listStartY - 2
	if listHeight < 5 {
		listHeight = 5
	}

	scrollOffset := 0
	if state.irBrowseIdx >= listHeight {
		scrollOffset = state.irBrowseIdx - listHeight + 1
	}

	for i := 0; i < listHeight && scrollOffset+i < len(state.irList); i++ {
		idx := scrollOffset + i
		entry := state.irList[idx]

		col := colWhite
		bgColor := colDef
		prefix := "  "

		if idx == state.irBrowseIdx {
			col = colDef
			bgColor = colWhite
			prefix = "> "
		}

		suffix := ""
		if idx == state.currentIRIdx {
			suffix = " [current]"
		}

		channelStr := "mono"
		if entry.Channels == 2 {
			channelStr = "stereo"
		} else if entry.Channels > 2 {
			channelStr = fmt.Sprintf("%dch", entry.Channels)
		}

		name := entry.Name
		maxNameLen := 25
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		line := fmt.Sprintf("%s%3d: %-25s (%s, %.0fkHz, %s, %.1fs)%s",
			prefix, idx, name, entry.Category, entry.SampleRate/1000, channelStr, entry.Duration(), suffix)

		if len(line) > w-1 {
			line = line[:w-1]
		}

		printTB(0, listStartY+i, col, bgColor, line)
	}

	if len(state.irList) > listHeight {
		scrollInfo := fmt.Sprintf("Showing %d-%d of %d",
			scrollOffset+1, min(scrollOffset+listHeight, len(state.irList)), len(state.irList))
		printTB(0, h-1, colYellow, colDef, scrollInfo)
	}

	termbox.Flush()
}

// drawCounter prints an integer counter, colored zeroColor when zero
// and nonZeroColor otherwise, since overrun counts are exact integers
// rather than a bar-graphed continuous quantity.
func drawCounter(yPos int, label string, count int, zeroColor, nonZeroColor termbox.Attribute) {
	col := zeroColor
	if count > 0 {
		col = nonZeroColor
	}
	printTB(2, yPos, col, colDef, fmt.Sprintf("%-16s %d", label, count))
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
