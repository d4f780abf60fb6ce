package dict

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// bundle is the on-disk shape of one builtin dictionary.
type bundle struct {
	ObjectName  string                 `json:"objectname"`
	DisplayName string                 `json:"displayname"`
	Locale      string                 `json:"locale,omitempty"`
	Terms       map[string]bundleEntry `json:"terms"`
}

type bundleEntry struct {
	Reading     string   `json:"reading,omitempty"`
	Definitions []string `json:"definitions"`
	Audios      []string `json:"audios,omitempty"`
}

// FileDictionary serves lookups from one JSON bundle loaded into memory.
type FileDictionary struct {
	meta  Metadata
	terms map[string]bundleEntry
}

// LoadFile parses a single dictionary bundle.
func LoadFile(path string) (*FileDictionary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary bundle: %w", err)
	}

	var b bundle
	if err := json.Unmarshal(content, &b); err != nil {
		return nil, fmt.Errorf("parse dictionary bundle %s: %w", filepath.Base(path), err)
	}
	if b.ObjectName == "" {
		return nil, fmt.Errorf("dictionary bundle %s has no objectname", filepath.Base(path))
	}
	if b.DisplayName == "" {
		b.DisplayName = b.ObjectName
	}

	terms := make(map[string]bundleEntry, len(b.Terms))
	for word, entry := range b.Terms {
		terms[strings.ToLower(word)] = entry
	}

	return &FileDictionary{
		meta: Metadata{
			ObjectName:  b.ObjectName,
			DisplayName: b.DisplayName,
			Locale:      b.Locale,
		},
		terms: terms,
	}, nil
}

// LoadDir loads every *.json bundle in dir, sorted by file name so
// registration order is stable across runs.
func LoadDir(dir string) ([]*FileDictionary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dictionary directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	dicts := make([]*FileDictionary, 0, len(names))
	for _, name := range names {
		d, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, d)
	}

	return dicts, nil
}

// FindTerm implements Dictionary. Absent terms return (nil, nil).
func (d *FileDictionary) FindTerm(_ context.Context, word string) (*Definition, error) {
	entry, ok := d.terms[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return nil, nil
	}

	return &Definition{
		Expression:  word,
		Reading:     entry.Reading,
		Definitions: entry.Definitions,
		Audios:      entry.Audios,
	}, nil
}

// Metadata implements Dictionary.
func (d *FileDictionary) Metadata() Metadata { return d.meta }
