package ports

import "github.com/terminalpulse/pulsesync/internal/domain"

// DisplayConfig bounds the rendered projection to the companion's screen.
type DisplayConfig struct {
	MaxWidth int
	MaxLines int
}

// VisualLine is one rendered row ready for display.
type VisualLine struct {
	Runs []domain.Run
}

// Renderer projects a frame into visual lines bounded by the display config.
// Implementations must be pure: no side effects, safe to call from the
// deferred-flush path.
type Renderer interface {
	Render(frame domain.Frame, cfg DisplayConfig) []VisualLine
}
