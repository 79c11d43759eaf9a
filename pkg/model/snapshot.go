package model

import (
	"sort"
	"strings"
)

// FormSnapshot is a complete, self-contained copy of form data, ordering and
// the uploaded image reference at a point in time. It is the unit of
// persistence and, flattened, the unit handed to the renderer.
type FormSnapshot struct {
	Sections     map[Section]SectionFields `json:"formData"`
	Order        FieldOrder                `json:"fieldOrder"`
	ImagePreview string                    `json:"imagePreview,omitempty"`
}

// Clone returns a deep copy. The receiver and the copy share no maps or
// slices, so mutations on either side stay invisible to the other.
func (s FormSnapshot) Clone() FormSnapshot {
	out := FormSnapshot{
		Sections:     make(map[Section]SectionFields, len(s.Sections)),
		Order:        make(FieldOrder, len(s.Order)),
		ImagePreview: s.ImagePreview,
	}
	for section, fields := range s.Sections {
		copied := make(SectionFields, len(fields))
		for key, field := range fields {
			copied[key] = field
		}
		out.Sections[section] = copied
	}
	for section, keys := range s.Order {
		out.Order[section] = append([]string(nil), keys...)
	}
	return out
}

// FlattenedSnapshot is the render-path projection of a snapshot: label
// metadata is dropped and each section becomes plain key->value.
type FlattenedSnapshot struct {
	Sections     map[Section]map[string]string `json:"sections"`
	Order        FieldOrder                    `json:"fieldOrder"`
	ImagePreview string                        `json:"imagePreview,omitempty"`
}

// Flatten projects the snapshot into its render-input form. Field order is
// carried along so layouts can walk entries deterministically.
func (s FormSnapshot) Flatten() FlattenedSnapshot {
	out := FlattenedSnapshot{
		Sections:     make(map[Section]map[string]string, len(s.Sections)),
		Order:        make(FieldOrder, len(s.Order)),
		ImagePreview: s.ImagePreview,
	}
	for section, fields := range s.Sections {
		values := make(map[string]string, len(fields))
		for key, field := range fields {
			values[key] = field.Value
		}
		out.Sections[section] = values
	}
	for section, keys := range s.Order {
		out.Order[section] = append([]string(nil), keys...)
	}
	return out
}

// Entry is a key/value pair in display order, produced by OrderedEntries.
type Entry struct {
	Key   string
	Value string
}

// OrderedEntries returns the section's entries following the snapshot's field
// order, skipping keys with empty or whitespace-only values. Keys present in
// the section but absent from the order sequence are appended at the end so
// no value is ever dropped by stale order metadata.
func (f FlattenedSnapshot) OrderedEntries(section Section) []Entry {
	values := f.Sections[section]
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	entries := make([]Entry, 0, len(values))
	appendKey := func(key string) {
		if _, done := seen[key]; done {
			return
		}
		seen[key] = struct{}{}
		value, ok := values[key]
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}

	for _, key := range f.Order[section] {
		appendKey(key)
	}

	// Stragglers outside the order metadata still render; sorted so the
	// output stays reproducible.
	var stragglers []string
	for key := range values {
		if _, done := seen[key]; !done {
			stragglers = append(stragglers, key)
		}
	}
	sort.Strings(stragglers)
	for _, key := range stragglers {
		appendKey(key)
	}
	return entries
}
