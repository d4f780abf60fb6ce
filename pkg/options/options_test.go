package options

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "options.json"), nil)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)

	opts, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !opts.Enabled {
		t.Fatal("defaults should be enabled")
	}
	if opts.DeckName != "Default" {
		t.Fatalf("deck = %q, want %q", opts.DeckName, "Default")
	}

	if _, ok := s.GetCurrent(); !ok {
		t.Fatal("GetCurrent should report loaded after Load")
	}
}

func TestUpdateBeforeLoadFails(t *testing.T) {
	s := newTestStore(t)

	hotkey := "17"
	if _, err := s.Update(Patch{Hotkey: &hotkey}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Update error = %v, want ErrNotLoaded", err)
	}
}

func TestUpdatePersistsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	s := NewStore(path, nil)
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	deck := "Vocabulary"
	dict := "Oxford"
	updated, err := s.Update(Patch{DeckName: &deck, Dictionary: &dict})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.DeckName != "Vocabulary" || updated.Dictionary != "Oxford" {
		t.Fatalf("updated = %+v, want patched fields applied", updated)
	}
	if updated.ModelName != "Basic" {
		t.Fatal("unpatched field changed")
	}

	// A fresh store sees the persisted state.
	reloaded, err := NewStore(path, nil).Load()
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.DeckName != "Vocabulary" {
		t.Fatalf("reloaded deck = %q, want %q", reloaded.DeckName, "Vocabulary")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	var seen []Options
	unsubscribe := s.Subscribe(func(opts Options) {
		seen = append(seen, opts)
	})

	locale := "ja"
	if _, err := s.Update(Patch{Locale: &locale}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(seen) != 1 || seen[0].Locale != "ja" {
		t.Fatalf("seen = %+v, want one notification with locale ja", seen)
	}

	unsubscribe()
	unsubscribe()

	if _, err := s.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if len(seen) != 1 {
		t.Fatal("unsubscribed callback still notified")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	enabled := false
	if _, err := s.Update(Patch{Enabled: &enabled}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	opts, err := s.Reset()
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if !opts.Enabled {
		t.Fatal("Reset did not restore defaults")
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Fatal("zero patch should be empty")
	}

	hotkey := "18"
	if (Patch{Hotkey: &hotkey}).IsEmpty() {
		t.Fatal("patch with a field should not be empty")
	}
}
