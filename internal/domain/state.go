package domain

// BackoffState holds the counters the scheduler turns into a poll interval.
// It is mutated only by the poller after each fetch attempt: unchanged resets
// to zero on any detected change, errors reset to zero on any success.
type BackoffState struct {
	ConsecutiveUnchanged int  `json:"consecutiveUnchanged"`
	ConsecutiveErrors    int  `json:"consecutiveErrors"`
	LowPowerMode         bool `json:"lowPowerMode"`
	InBackground         bool `json:"inBackground"`
}

// IndexBase is a tmux window numbering convention: sessions index windows
// starting at either 0 or 1 depending on server configuration.
type IndexBase int

const (
	BaseZero IndexBase = 0
	BaseOne  IndexBase = 1
)

// Other returns the opposite base convention.
func (b IndexBase) Other() IndexBase {
	if b == BaseZero {
		return BaseOne
	}
	return BaseZero
}

// NavigationState tracks the active capture target and which window index
// base has been observed to work per session. The base map persists across
// restarts; the rest is in-memory only.
type NavigationState struct {
	ActiveSession     string
	ActiveWindowIndex int
	HasActiveWindow   bool

	// PreferredBase maps session name to the index base that produced a
	// successful probe. Absent entries mean nothing has been learned yet.
	PreferredBase map[string]IndexBase
}
