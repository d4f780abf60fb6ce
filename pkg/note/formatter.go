// Package note turns dictionary lookup results into flashcard notes using
// the field mappings configured in the options.
package note

import (
	"errors"
	"fmt"
	"strings"

	"wordbridge/pkg/anki"
	"wordbridge/pkg/dict"
	"wordbridge/pkg/options"
)

// Context carries the capture-time details of one lookup that are not part
// of the definition itself.
type Context struct {
	Sentence string `json:"sentence,omitempty"`
	PageURL  string `json:"url,omitempty"`
}

// Source tokens a field mapping may reference.
const (
	SourceExpression = "expression"
	SourceReading    = "reading"
	SourceDefinition = "definition"
	SourceSentence   = "sentence"
	SourceURL        = "url"
	SourceAudio      = "audio"
)

// Formatter builds anki.Note values from definitions.
type Formatter struct{}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

// defaultFieldMap is used when the options carry no mapping.
var defaultFieldMap = map[string]string{
	"Front": SourceExpression,
	"Back":  SourceDefinition,
}

// Format maps def into the note type the options select.
func (f *Formatter) Format(opts options.Options, def dict.Definition, noteCtx Context) (anki.Note, error) {
	if opts.DeckName == "" {
		return anki.Note{}, errors.New("note: deck name is not configured")
	}
	if opts.ModelName == "" {
		return anki.Note{}, errors.New("note: model name is not configured")
	}

	fieldMap := opts.FieldMap
	if len(fieldMap) == 0 {
		fieldMap = defaultFieldMap
	}

	fields := make(map[string]string, len(fieldMap))
	for field, source := range fieldMap {
		value, err := renderSource(source, def, noteCtx)
		if err != nil {
			return anki.Note{}, err
		}
		fields[field] = value
	}

	return anki.Note{
		DeckName:  opts.DeckName,
		ModelName: opts.ModelName,
		Fields:    fields,
		Tags:      []string{"wordbridge"},
	}, nil
}

func renderSource(source string, def dict.Definition, noteCtx Context) (string, error) {
	switch source {
	case SourceExpression:
		return def.Expression, nil
	case SourceReading:
		return def.Reading, nil
	case SourceDefinition:
		return strings.Join(def.Definitions, "<br>"), nil
	case SourceSentence:
		return noteCtx.Sentence, nil
	case SourceURL:
		return noteCtx.PageURL, nil
	case SourceAudio:
		if len(def.Audios) == 0 {
			return "", nil
		}
		return def.Audios[0], nil
	default:
		return "", fmt.Errorf("note: unknown field source %q", source)
	}
}
