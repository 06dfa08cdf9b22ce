package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// settingsFile mirrors domain.Settings with TOML tags.
type settingsFile struct {
	MaxWidth  int    `toml:"max_width"`
	MaxLines  int    `toml:"max_lines"`
	FontScale int    `toml:"font_scale"`
	Theme     string `toml:"theme"`
}

// SettingsWatcher monitors the display settings file and feeds edits into
// the replication channel. The channel debounces, so a flurry of saves while
// a control is being adjusted collapses into one send.
type SettingsWatcher struct {
	path    string
	channel *Channel
	logger  ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewSettingsWatcher creates a watcher for the settings file at path.
func NewSettingsWatcher(path string, channel *Channel, logger ports.Logger) *SettingsWatcher {
	return &SettingsWatcher{path: path, channel: channel, logger: logger}
}

// Run watches the settings file's directory until the context is canceled.
// A missing file is not an error; it is picked up when created.
func (w *SettingsWatcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("settings watcher: create", ports.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Error("settings watcher: watch dir", ports.Err(err))
		return
	}

	// Propagate the current file content once at startup.
	w.load()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Editors fire bursts of writes; settle before reading.
			w.debounceLoad(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher", ports.Err(err))
		}
	}
}

func (w *SettingsWatcher) debounceLoad(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.load)
}

func (w *SettingsWatcher) load() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("settings watcher: read", ports.Err(err))
		}
		return
	}

	var sf settingsFile
	if err := toml.Unmarshal(raw, &sf); err != nil {
		w.logger.Warn("settings watcher: parse", ports.Err(err))
		return
	}

	w.channel.UpdateSettings(domain.Settings{
		MaxWidth:  sf.MaxWidth,
		MaxLines:  sf.MaxLines,
		FontScale: sf.FontScale,
		Theme:     sf.Theme,
	})
}
