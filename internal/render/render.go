// Package render provides the width-bounded projection of a frame for a
// companion display.
package render

import (
	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// Projector implements ports.Renderer. It is a pure function of its inputs:
// lines beyond the display bounds are dropped (newest kept), runs are
// truncated at the width limit, and trailing blank lines are stripped so the
// small screen shows no dead space.
type Projector struct{}

// NewProjector creates a projector.
func NewProjector() *Projector {
	return &Projector{}
}

// Render projects the frame into visual lines bounded by cfg.
func (Projector) Render(frame domain.Frame, cfg ports.DisplayConfig) []ports.VisualLine {
	lines := frame.Content

	for len(lines) > 0 && blank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	if cfg.MaxLines > 0 && len(lines) > cfg.MaxLines {
		lines = lines[len(lines)-cfg.MaxLines:]
	}

	out := make([]ports.VisualLine, len(lines))
	for i, line := range lines {
		out[i] = ports.VisualLine{Runs: clipLine(line, cfg.MaxWidth)}
	}
	return out
}

// clipLine truncates a line's runs at width columns, splitting the run that
// straddles the boundary.
func clipLine(line domain.Line, width int) []domain.Run {
	if width <= 0 {
		return append([]domain.Run(nil), line...)
	}

	out := make([]domain.Run, 0, len(line))
	remaining := width
	for _, run := range line {
		if remaining <= 0 {
			break
		}
		text := []rune(run.Text)
		if len(text) > remaining {
			clipped := run
			clipped.Text = string(text[:remaining])
			out = append(out, clipped)
			break
		}
		out = append(out, run)
		remaining -= len(text)
	}
	return out
}

func blank(line domain.Line) bool {
	for _, run := range line {
		for _, r := range run.Text {
			if r != ' ' && r != '\t' {
				return false
			}
		}
	}
	return true
}
