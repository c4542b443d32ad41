// Package frontmatter implements the bidirectional mapping between an
// entity's structured fields and its document form: a key/value
// metadata block, exactly one blank line, then the free-form markdown
// body.
//
// The format is the one bit-exact external artifact of the system and
// must stay stable across versions: Decode(Encode(e)) reproduces e
// field-for-field, and Encode is deterministic — identical input
// yields byte-identical output.
package frontmatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/tarka-io/tarka/internal/entity"
)

// Declared field keys, emitted in this order before the metadata map.
const (
	keyID        = "id"
	keyKind      = "kind"
	keyTitle     = "title"
	keyStatus    = "status"
	keyParent    = "parent"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

// fieldKeys is the declared emission order of modeled fields.
var fieldKeys = []string{
	keyID, keyKind, keyTitle, keyStatus, keyParent, keyCreatedAt, keyUpdatedAt,
}

// knownKeys is the set of keys that map onto modeled fields. Anything
// else is preserved in the metadata map (forward-compatible).
var knownKeys = map[string]bool{
	keyID:        true,
	keyKind:      true,
	keyTitle:     true,
	keyStatus:    true,
	keyParent:    true,
	keyCreatedAt: true,
	keyUpdatedAt: true,
}

// ParseError reports a type mismatch while coercing a known key. It
// names the offending key and line so callers can point at the exact
// spot in the document.
type ParseError struct {
	Line   int    `json:"line"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: key %q: %s", e.Line, e.Key, e.Reason)
}

// MalformedDocumentError reports a structurally broken document: a
// value-less key, or a metadata block with no separating blank line.
type MalformedDocumentError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document at line %d: %s", e.Line, e.Reason)
}

// Encode emits the document form of e: every modeled field plus the
// metadata map, one `key: value` per line, a blank line, then the
// description verbatim as the body.
func Encode(e *entity.Entity) []byte {
	var b strings.Builder

	writeLine(&b, keyID, e.ID)
	writeLine(&b, keyKind, string(e.Kind))
	writeLine(&b, keyTitle, e.Title)
	writeLine(&b, keyStatus, string(e.Status))
	writeLine(&b, keyParent, e.ParentID)
	writeLine(&b, keyCreatedAt, formatTime(e.CreatedAt))
	writeLine(&b, keyUpdatedAt, formatTime(e.UpdatedAt))

	if e.Meta != nil {
		for pair := e.Meta.Oldest(); pair != nil; pair = pair.Next() {
			writeLine(&b, pair.Key, pair.Value)
		}
	}

	b.WriteString("\n")
	b.WriteString(e.Description)

	return []byte(b.String())
}

// Decode parses a document back into entity fields. Unknown keys are
// preserved as metadata in file order; known keys are type-coerced.
// Everything after the first blank line is the body.
func Decode(data []byte) (*entity.Entity, error) {
	lines := strings.Split(string(data), "\n")

	e := &entity.Entity{Meta: entity.NewMeta()}

	bodyStart := -1
	for i, line := range lines {
		if line == "" {
			bodyStart = i + 1
			break
		}

		idx := strings.Index(line, ":")
		if idx < 1 {
			return nil, &MalformedDocumentError{
				Line:   i + 1,
				Reason: fmt.Sprintf("expected `key: value`, got %q", line),
			}
		}

		key := line[:idx]
		// Strip only the single separator space writeLine emits, so
		// value whitespace survives the round trip.
		value := strings.TrimPrefix(line[idx+1:], " ")

		if !knownKeys[key] {
			e.Meta.Set(key, value)
			continue
		}
		if err := setField(e, key, value, i+1); err != nil {
			return nil, err
		}
	}

	if bodyStart < 0 {
		return nil, &MalformedDocumentError{
			Line:   len(lines),
			Reason: "metadata block is not terminated by a blank line",
		}
	}

	e.Description = strings.Join(lines[bodyStart:], "\n")
	return e, nil
}

// setField coerces a known key's string value onto the entity.
func setField(e *entity.Entity, key, value string, line int) error {
	switch key {
	case keyID:
		e.ID = value
	case keyTitle:
		e.Title = value
	case keyParent:
		e.ParentID = value
	case keyKind:
		if value == "" {
			return nil
		}
		k, err := entity.ParseKind(value)
		if err != nil {
			return &ParseError{Line: line, Key: key, Reason: err.Error()}
		}
		e.Kind = k
	case keyStatus:
		if value == "" {
			return nil
		}
		s, err := entity.ParseStatus(value)
		if err != nil {
			return &ParseError{Line: line, Key: key, Reason: err.Error()}
		}
		e.Status = s
	case keyCreatedAt:
		t, err := parseTime(value)
		if err != nil {
			return &ParseError{Line: line, Key: key, Reason: err.Error()}
		}
		e.CreatedAt = t
	case keyUpdatedAt:
		t, err := parseTime(value)
		if err != nil {
			return &ParseError{Line: line, Key: key, Reason: err.Error()}
		}
		e.UpdatedAt = t
	}
	return nil
}

// writeLine emits a single `key: value` line. An empty value is
// emitted as `key:` so the key is still present and the output stays
// free of trailing whitespace.
func writeLine(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(":")
	if value != "" {
		b.WriteString(" ")
		b.WriteString(value)
	}
	b.WriteString("\n")
}

// formatTime renders a timestamp as RFC3339 UTC. The zero time is
// rendered as empty so scaffolds and partially-filled documents
// round-trip without fake timestamps.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("not an RFC3339 timestamp: %q", v)
	}
	return t.UTC(), nil
}
