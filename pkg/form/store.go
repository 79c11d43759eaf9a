// Package form owns the live, mutable form state for one editing session.
// All mutations go through the Store so persistence and the presentation
// layer observe every change.
package form

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/schema"
)

// Saver receives the snapshot after every mutation. Implementations are
// expected to be fire-and-forget; the store ignores save failures.
type Saver interface {
	Save(model.FormSnapshot)
}

// Observer is notified after every mutation so the presentation layer can
// re-render the touched section.
type Observer interface {
	FormChanged(section model.Section)
}

// Option customises a Store at construction time.
type Option func(*Store)

// WithSaver wires the persistence bridge that captures every mutation.
func WithSaver(saver Saver) Option {
	return func(s *Store) {
		s.saver = saver
	}
}

// WithObserver wires the re-render signal receiver.
func WithObserver(observer Observer) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

// WithInitialSnapshot seeds the store with reconciled state instead of the
// schema defaults.
func WithInitialSnapshot(snap model.FormSnapshot) Option {
	return func(s *Store) {
		s.state = snap.Clone()
	}
}

// Store holds the working form state for one session. It is not safe for
// concurrent use; the surrounding event loop serialises access.
type Store struct {
	schema   *schema.Schema
	state    model.FormSnapshot
	saver    Saver
	observer Observer
}

// New constructs a Store over the given schema, starting from the schema
// defaults unless an initial snapshot is supplied.
func New(s *schema.Schema, options ...Option) *Store {
	store := &Store{
		schema: s,
		state:  s.DefaultSnapshot(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store
}

// SetValue updates the value of an existing field.
func (s *Store) SetValue(section model.Section, key, value string) error {
	fields, ok := s.state.Sections[section]
	if !ok {
		return fmt.Errorf("form: unknown section %q", section)
	}
	field, ok := fields[key]
	if !ok {
		return fmt.Errorf("form: section %s has no field %q", section, key)
	}
	field.Value = value
	fields[key] = field
	s.changed(section)
	return nil
}

// SetLabel renames a field. Mandatory fields keep their label; renaming one
// is a no-op rather than an error so bulk label edits need no special cases.
func (s *Store) SetLabel(section model.Section, key, label string) error {
	fields, ok := s.state.Sections[section]
	if !ok {
		return fmt.Errorf("form: unknown section %q", section)
	}
	field, ok := fields[key]
	if !ok {
		return fmt.Errorf("form: section %s has no field %q", section, key)
	}
	if s.schema.Mandatory(section, key) {
		return nil
	}
	field.Label = label
	fields[key] = field
	s.changed(section)
	return nil
}

// AddField appends a fresh custom field to the section and returns its key.
func (s *Store) AddField(section model.Section) (string, error) {
	fields, ok := s.state.Sections[section]
	if !ok {
		return "", fmt.Errorf("form: unknown section %q", section)
	}

	key := "custom_" + uuid.NewString()
	for {
		if _, taken := fields[key]; !taken {
			break
		}
		key = "custom_" + uuid.NewString()
	}

	fields[key] = model.FieldValue{Label: "New Field"}
	s.state.Order[section] = append(s.state.Order[section], key)
	s.changed(section)
	return key, nil
}

// Reorder replaces the section's field order. The caller should pass a
// permutation of the existing keys; unknown keys are ignored and existing
// keys missing from the request are appended at the end, preserving the
// every-key-appears-exactly-once invariant instead of dropping data.
func (s *Store) Reorder(section model.Section, keys []string) error {
	fields, ok := s.state.Sections[section]
	if !ok {
		return fmt.Errorf("form: unknown section %q", section)
	}

	next := make([]string, 0, len(fields))
	placed := make(map[string]struct{}, len(fields))
	for _, key := range keys {
		if _, exists := fields[key]; !exists {
			continue
		}
		if _, dup := placed[key]; dup {
			continue
		}
		placed[key] = struct{}{}
		next = append(next, key)
	}
	for _, key := range s.state.Order[section] {
		if _, done := placed[key]; done {
			continue
		}
		if _, exists := fields[key]; !exists {
			continue
		}
		placed[key] = struct{}{}
		next = append(next, key)
	}
	// Keys absent from both the request and the previous order, possible
	// after restoring a partial persisted order, are appended deterministically.
	if len(next) < len(fields) {
		missing := make([]string, 0, len(fields)-len(next))
		for key := range fields {
			if _, done := placed[key]; !done {
				missing = append(missing, key)
			}
		}
		sort.Strings(missing)
		next = append(next, missing...)
	}

	s.state.Order[section] = next
	s.changed(section)
	return nil
}

// SetImage records the uploaded profile image reference.
func (s *Store) SetImage(encoded string) {
	s.state.ImagePreview = encoded
	s.changed(model.SectionPersonal)
}

// Reset restores the schema defaults, clearing the image reference and any
// order overrides.
func (s *Store) Reset() {
	s.state = s.schema.DefaultSnapshot()
	for _, section := range model.Sections() {
		s.changed(section)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.FormSnapshot {
	return s.state.Clone()
}

// Freeze returns the flattened, independent copy handed to the render path
// at submission time. Later store mutations never affect a frozen copy.
func (s *Store) Freeze() model.FlattenedSnapshot {
	return s.state.Clone().Flatten()
}

func (s *Store) changed(section model.Section) {
	if s.saver != nil {
		s.saver.Save(s.state.Clone())
	}
	if s.observer != nil {
		s.observer.FormChanged(section)
	}
}
