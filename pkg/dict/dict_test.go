package dict

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const oxfordBundle = `{
  "objectname": "Oxford",
  "displayname": "Oxford Learner's",
  "locale": "en",
  "terms": {
    "hello": {"definitions": ["used as a greeting"]},
    "run": {"definitions": ["move at a speed faster than a walk"]}
  }
}`

func writeBundle(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
}

func TestFileDictionaryFindTerm(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "oxford.json", oxfordBundle)

	d, err := LoadFile(filepath.Join(dir, "oxford.json"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := d.Metadata().DisplayName; got != "Oxford Learner's" {
		t.Fatalf("displayname = %q", got)
	}

	def, err := d.FindTerm(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("FindTerm error: %v", err)
	}
	if def == nil || len(def.Definitions) != 1 {
		t.Fatalf("FindTerm = %+v, want one definition", def)
	}

	missing, err := d.FindTerm(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("FindTerm error: %v", err)
	}
	if missing != nil {
		t.Fatalf("FindTerm for absent term = %+v, want nil", missing)
	}
}

func TestLoadDirOrdersByFileName(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "b.json", `{"objectname": "Second", "terms": {}}`)
	writeBundle(t, dir, "a.json", `{"objectname": "First", "terms": {}}`)
	writeBundle(t, dir, "notes.txt", "ignored")

	dicts, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir error: %v", err)
	}
	if len(dicts) != 2 {
		t.Fatalf("loaded %d dictionaries, want 2", len(dicts))
	}
	if dicts[0].Metadata().ObjectName != "First" || dicts[1].Metadata().ObjectName != "Second" {
		t.Fatalf("order = %s, %s", dicts[0].Metadata().ObjectName, dicts[1].Metadata().ObjectName)
	}
}

func TestLoadFileRejectsAnonymousBundle(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "broken.json", `{"terms": {}}`)

	if _, err := LoadFile(filepath.Join(dir, "broken.json")); err == nil {
		t.Fatal("expected error for bundle without objectname")
	}
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "oxford.json", oxfordBundle)

	d, err := LoadFile(filepath.Join(dir, "oxford.json"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	r := NewRegistry()
	if err := r.Register(d); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Register(d); !errors.Is(err, ErrDuplicateDictionary) {
		t.Fatalf("Register error = %v, want ErrDuplicateDictionary", err)
	}

	if _, ok := r.Get("Oxford"); !ok {
		t.Fatal("Get missed a registered dictionary")
	}
	first, ok := r.First()
	if !ok || first.Metadata().ObjectName != "Oxford" {
		t.Fatal("First did not return the earliest registration")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatal("Clear left registrations behind")
	}
	if _, ok := r.First(); ok {
		t.Fatal("First returned a dictionary after Clear")
	}
}

func TestDeinflect(t *testing.T) {
	d := NewDeinflector(nil)

	cases := []struct {
		term string
		want string
	}{
		{"running", "run"},
		{"swimming", "swim"},
		{"stopped", "stop"},
		{"studies", "study"},
		{"walked", "walk"},
		{"boxes", "box"},
	}

	for _, tc := range cases {
		candidates := d.Deinflect(tc.term)
		if len(candidates) == 0 || candidates[0].Term != tc.term {
			t.Fatalf("Deinflect(%q) first candidate = %+v, want the term itself", tc.term, candidates)
		}

		found := false
		for _, c := range candidates {
			if c.Term == tc.want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Deinflect(%q) = %+v, want candidate %q", tc.term, candidates, tc.want)
		}
	}

	if got := d.Deinflect("  "); got != nil {
		t.Fatalf("Deinflect(blank) = %+v, want nil", got)
	}
}

func TestDeinflectDoubledConsonantStripsDuplicate(t *testing.T) {
	d := NewDeinflector(nil)

	for _, c := range d.Deinflect("running") {
		if c.Rule == "progressive-doubled" {
			if c.Term != "run" {
				t.Fatalf("progressive-doubled candidate = %q, want %q", c.Term, "run")
			}
			return
		}
	}
	t.Fatal(`no progressive-doubled candidate for "running"`)
}
