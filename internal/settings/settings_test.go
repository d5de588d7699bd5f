package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func managerWithTempDir(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	m := managerWithTempDir(t)

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Errorf("Load on empty dir: got %+v, want defaults", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	m := managerWithTempDir(t)

	want := UserSettings{FrameRate: 120, Server: "ws://example.test:3050/ws"}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestLoadRecoversFromCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "bunker-sharescreen", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Errorf("corrupt file: got %+v, want defaults", got)
	}
}

func TestLoadClampsInvalidFrameRate(t *testing.T) {
	m := managerWithTempDir(t)

	if err := m.Save(UserSettings{FrameRate: -5}); err != nil {
		t.Fatal(err)
	}
	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.FrameRate != Defaults().FrameRate {
		t.Errorf("frame rate: got %d, want default", got.FrameRate)
	}
}
