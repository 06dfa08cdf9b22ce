package domain

import "time"

// Run is one styled span of text within a line. Field names match the compact
// schema emitted by the capture server's ANSI parser.
type Run struct {
	Text      string `json:"t"`
	FG        string `json:"fg,omitempty"`
	BG        string `json:"bg,omitempty"`
	Bold      bool   `json:"b,omitempty"`
	Dim       bool   `json:"d,omitempty"`
	Italic    bool   `json:"i,omitempty"`
	Underline bool   `json:"u,omitempty"`
}

// Line is one terminal row as a sequence of styled runs.
type Line []Run

// Frame is a single captured snapshot of the remote pane.
//
// Two frames with equal ContentHash are content-identical regardless of
// metadata; the hash is produced by the capture server and trusted as-is.
// Frames are immutable: a new capture supersedes, never mutates.
type Frame struct {
	Host        string    `json:"host"`
	Timestamp   time.Time `json:"ts"`
	SessionID   string    `json:"session"`
	WindowIndex int       `json:"winIndex"`
	WindowName  string    `json:"winName"`
	PaneID      string    `json:"paneId"`
	ContentHash string    `json:"hash"`
	Content     []Line    `json:"lines"`
}

// Pane identifies the server's active pane after a navigation step.
type Pane struct {
	SessionName string `json:"session"`
	WindowIndex int    `json:"winIndex"`
	WindowName  string `json:"winName"`
	PaneID      string `json:"paneId"`
}

// Session describes one tmux session as reported by the capture server.
type Session struct {
	Name     string `json:"name"`
	Windows  int    `json:"windows"`
	Attached bool   `json:"attached"`
}

// Settings are the companion display preferences replicated alongside frames.
// Settings updates are idempotent and always safe to apply.
type Settings struct {
	MaxWidth  int    `json:"maxWidth"`
	MaxLines  int    `json:"maxLines"`
	FontScale int    `json:"fontScale"`
	Theme     string `json:"theme"`
}

// EnvelopeKind distinguishes the wire payload variants.
type EnvelopeKind string

const (
	// EnvelopeFrame carries a frame, optionally with settings piggybacked.
	EnvelopeFrame EnvelopeKind = "frame"

	// EnvelopeSettings carries only a settings update.
	EnvelopeSettings EnvelopeKind = "settings"

	// EnvelopeRefreshRequest asks the primary for a forced fetch-and-publish.
	// Sent companion-to-primary; carries no frame or settings.
	EnvelopeRefreshRequest EnvelopeKind = "refresh"
)

// Envelope is the payload carried over both the immediate and the
// store-and-forward transport tiers. Every envelope carries the sender's
// current SequenceStamp so the receiver can discard stale deliveries.
type Envelope struct {
	Kind     EnvelopeKind  `json:"kind"`
	Stamp    SequenceStamp `json:"stamp"`
	Frame    *Frame        `json:"frame,omitempty"`
	Settings *Settings     `json:"settings,omitempty"`

	// DisplayActive reports the companion's display state on
	// companion-to-primary envelopes; the sender uses it to pick the
	// outstanding store-and-forward cap. Nil means not reported.
	DisplayActive *bool `json:"displayActive,omitempty"`
}
