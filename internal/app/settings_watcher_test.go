package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForSettings(t *testing.T, tr *fakeTransport, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(tr.immediateSent()) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d settings sends, got %d", want, len(tr.immediateSent()))
}

func TestSettingsWatcher_LoadsInitialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte("max_width = 48\ntheme = \"dark\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransport{reachable: true}
	c := newTestChannel(tr, nil)
	w := NewSettingsWatcher(path, c, mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitForSettings(t, tr, 1)
	sent := tr.immediateSent()
	if sent[0].Settings == nil || sent[0].Settings.MaxWidth != 48 || sent[0].Settings.Theme != "dark" {
		t.Errorf("settings = %+v", sent[0].Settings)
	}
}

func TestSettingsWatcher_PicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	tr := &fakeTransport{reachable: true}
	c := newTestChannel(tr, nil)
	w := NewSettingsWatcher(path, c, mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// File does not exist yet; created after the watcher starts.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("max_lines = 25\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	waitForSettings(t, tr, 1)
	sent := tr.immediateSent()
	if sent[0].Settings == nil || sent[0].Settings.MaxLines != 25 {
		t.Errorf("settings = %+v", sent[0].Settings)
	}
}

func TestSettingsWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	tr := &fakeTransport{reachable: true}
	c := newTestChannel(tr, nil)
	w := NewSettingsWatcher(path, c, mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := len(tr.immediateSent()); got != 0 {
		t.Errorf("sent %d envelopes from an unrelated file, want 0", got)
	}
}

func TestSettingsWatcher_EmptyPathDisabled(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	c := newTestChannel(tr, nil)
	w := NewSettingsWatcher("", c, mockLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() with empty path did not return immediately")
	}
}
