package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// ansiColors maps the capture server's named palette onto SGR codes.
var ansiColors = map[string]int{
	"black":   30,
	"red":     31,
	"green":   32,
	"yellow":  33,
	"blue":    34,
	"magenta": 35,
	"cyan":    36,
	"white":   37,
}

// consoleDisplay writes each rendered frame to a terminal, clearing the
// screen first so the view always shows the latest projection.
type consoleDisplay struct {
	mu  sync.Mutex
	out io.Writer
}

func (d *consoleDisplay) Apply(frame domain.Frame, lines []ports.VisualLine) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	b.WriteString("\x1b[2J\x1b[H")
	fmt.Fprintf(&b, "\x1b[7m %s · %d:%s \x1b[0m\n",
		frame.SessionID, frame.WindowIndex, frame.WindowName)
	for _, line := range lines {
		for _, run := range line.Runs {
			writeRun(&b, run)
		}
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(d.out, b.String())
}

func writeRun(b *strings.Builder, run domain.Run) {
	var codes []int
	if run.Bold {
		codes = append(codes, 1)
	}
	if run.Dim {
		codes = append(codes, 2)
	}
	if run.Italic {
		codes = append(codes, 3)
	}
	if run.Underline {
		codes = append(codes, 4)
	}
	if c, ok := ansiColors[run.FG]; ok {
		codes = append(codes, c)
	}
	if c, ok := ansiColors[run.BG]; ok {
		codes = append(codes, c+10)
	}
	if len(codes) == 0 {
		b.WriteString(run.Text)
		return
	}
	b.WriteString("\x1b[")
	for i, c := range codes {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(b, "%d", c)
	}
	b.WriteByte('m')
	b.WriteString(run.Text)
	b.WriteString("\x1b[0m")
}
