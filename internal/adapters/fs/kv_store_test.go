package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestKVStore_SetGet(t *testing.T) {
	dir := t.TempDir()
	s := NewKVStore(dir)
	ctx := context.Background()

	if err := s.Set(ctx, "nav/base/main", []byte("1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx, "nav/base/main")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "1" {
		t.Errorf("Get() = %q, want \"1\"", got)
	}
}

func TestKVStore_GetAbsent(t *testing.T) {
	s := NewKVStore(t.TempDir())

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %q, want nil", got)
	}
}

func TestKVStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := NewKVStore(dir)
	if err := s.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s2 := NewKVStore(dir)
	got, err := s2.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get() after reopen = %q", got)
	}
}

func TestKVStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s := NewKVStore(dir)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := s.Get(ctx, "k"); got != nil {
		t.Errorf("Get() after delete = %q, want nil", got)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}

func TestKVStore_CorruptFileYieldsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storeFileName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewKVStore(dir)
	got, err := s.Get(context.Background(), "k")
	if err != nil || got != nil {
		t.Errorf("Get() on corrupt store = %q, %v, want nil, nil", got, err)
	}

	// The store remains usable and writes clean state.
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set() after corruption error = %v", err)
	}
}

func TestKVStore_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewKVStore(dir)

	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}
