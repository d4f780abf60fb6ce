// Package options owns the persisted extension options record and the
// store contract the rest of the process depends on: load/save/update/
// getCurrent/subscribe/reset.
package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotLoaded is returned when the current options are requested before
// any load has happened.
var ErrNotLoaded = errors.New("options: not loaded")

// Options is the flat configuration record owned by the store.
type Options struct {
	Enabled     bool   `json:"enabled"`
	Hotkey      string `json:"hotkey"`
	Locale      string `json:"locale"`
	MaxContext  int    `json:"maxcontext"`
	MaxExamples int    `json:"maxexample"`

	// Flashcard export settings.
	AnkiURL    string            `json:"ankiurl"`
	AnkiKey    string            `json:"ankikey,omitempty"`
	DeckName   string            `json:"deckname"`
	ModelName  string            `json:"typename"`
	FieldMap   map[string]string `json:"fieldmap,omitempty"`
	Duplicate  bool              `json:"duplicate"`
	AudioField string            `json:"audiofield,omitempty"`

	// Dictionary selection: the active dictionary plus the enabled list.
	Dictionary   string   `json:"dictSelected"`
	Dictionaries []string `json:"dictNamelist,omitempty"`
}

// Defaults returns the options used before any save and after Reset.
func Defaults() Options {
	return Options{
		Enabled:     true,
		Hotkey:      "16", // shift
		Locale:      "en",
		MaxContext:  1,
		MaxExamples: 2,
		AnkiURL:     "http://127.0.0.1:8765",
		DeckName:    "Default",
		ModelName:   "Basic",
	}
}

// Patch carries the replacement fields of one update; nil fields keep
// their current value.
type Patch struct {
	Enabled      *bool              `json:"enabled,omitempty"`
	Hotkey       *string            `json:"hotkey,omitempty"`
	Locale       *string            `json:"locale,omitempty"`
	MaxContext   *int               `json:"maxcontext,omitempty"`
	MaxExamples  *int               `json:"maxexample,omitempty"`
	AnkiURL      *string            `json:"ankiurl,omitempty"`
	AnkiKey      *string            `json:"ankikey,omitempty"`
	DeckName     *string            `json:"deckname,omitempty"`
	ModelName    *string            `json:"typename,omitempty"`
	FieldMap     *map[string]string `json:"fieldmap,omitempty"`
	Duplicate    *bool              `json:"duplicate,omitempty"`
	AudioField   *string            `json:"audiofield,omitempty"`
	Dictionary   *string            `json:"dictSelected,omitempty"`
	Dictionaries *[]string          `json:"dictNamelist,omitempty"`
}

// IsEmpty reports whether the patch carries no replacement field at all.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

func (p Patch) apply(opts *Options) {
	if p.Enabled != nil {
		opts.Enabled = *p.Enabled
	}
	if p.Hotkey != nil {
		opts.Hotkey = *p.Hotkey
	}
	if p.Locale != nil {
		opts.Locale = *p.Locale
	}
	if p.MaxContext != nil {
		opts.MaxContext = *p.MaxContext
	}
	if p.MaxExamples != nil {
		opts.MaxExamples = *p.MaxExamples
	}
	if p.AnkiURL != nil {
		opts.AnkiURL = *p.AnkiURL
	}
	if p.AnkiKey != nil {
		opts.AnkiKey = *p.AnkiKey
	}
	if p.DeckName != nil {
		opts.DeckName = *p.DeckName
	}
	if p.ModelName != nil {
		opts.ModelName = *p.ModelName
	}
	if p.FieldMap != nil {
		opts.FieldMap = *p.FieldMap
	}
	if p.Duplicate != nil {
		opts.Duplicate = *p.Duplicate
	}
	if p.AudioField != nil {
		opts.AudioField = *p.AudioField
	}
	if p.Dictionary != nil {
		opts.Dictionary = *p.Dictionary
	}
	if p.Dictionaries != nil {
		opts.Dictionaries = *p.Dictionaries
	}
}

// Subscriber is notified with the full options snapshot after every
// persisted mutation.
type Subscriber func(Options)

// Store persists Options as a JSON file and fans out change notifications.
type Store struct {
	path string
	log  *slog.Logger

	mu          sync.Mutex
	current     *Options
	subscribers map[uint64]Subscriber
	nextSubID   uint64
}

// NewStore creates a Store backed by the JSON file at path. Nothing is
// read until Load.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{
		path:        path,
		log:         log.With("component", "options.store"),
		subscribers: make(map[uint64]Subscriber),
	}
}

// Load reads the persisted options, falling back to defaults when the file
// does not exist yet.
func (s *Store) Load() (Options, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		opts := Defaults()
		s.setCurrent(opts)
		return opts, nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}

	var opts Options
	if err := json.Unmarshal(content, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options file: %w", err)
	}

	s.setCurrent(opts)
	return opts, nil
}

// Save persists opts and notifies subscribers.
func (s *Store) Save(opts Options) error {
	if err := s.persist(opts); err != nil {
		return err
	}

	s.setCurrent(opts)
	s.notify(opts)
	return nil
}

// Update applies the patch on top of the current options, persists the
// result, notifies subscribers, and returns the full snapshot. Updating a
// store that was never loaded fails.
func (s *Store) Update(patch Patch) (Options, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return Options{}, ErrNotLoaded
	}
	opts := *s.current
	s.mu.Unlock()

	patch.apply(&opts)

	if err := s.persist(opts); err != nil {
		return Options{}, err
	}

	s.setCurrent(opts)
	s.notify(opts)
	return opts, nil
}

// GetCurrent returns the in-memory snapshot, or false when nothing has
// been loaded yet.
func (s *Store) GetCurrent() (Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Options{}, false
	}
	return *s.current, true
}

// Reset persists the defaults and returns them.
func (s *Store) Reset() (Options, error) {
	opts := Defaults()
	if err := s.persist(opts); err != nil {
		return Options{}, err
	}

	s.setCurrent(opts)
	s.notify(opts)
	return opts, nil
}

// Subscribe registers callback for every persisted change and returns its
// unsubscribe function.
func (s *Store) Subscribe(callback Subscriber) func() {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = callback
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) setCurrent(opts Options) {
	s.mu.Lock()
	s.current = &opts
	s.mu.Unlock()
}

func (s *Store) notify(opts Options) {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(opts)
	}
}

func (s *Store) persist(opts Options) error {
	content, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create options directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, content, 0o600); err != nil {
		return fmt.Errorf("write options file: %w", err)
	}

	return nil
}
