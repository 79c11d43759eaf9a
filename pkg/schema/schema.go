// Package schema holds the canonical biodata form definition: the fixed
// sections, their default fields and labels, default display order and the
// per-section mandatory sets. The definition is static data loaded once from
// an embedded document.
package schema

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

type document struct {
	Sections []sectionDoc `yaml:"sections"`
}

type sectionDoc struct {
	Name      string     `yaml:"name"`
	Mandatory []string   `yaml:"mandatory"`
	Fields    []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// Schema is the parsed, immutable form definition.
type Schema struct {
	defaults  model.FormSnapshot
	mandatory map[model.Section]map[string]struct{}
	order     model.FieldOrder
}

var (
	loadOnce   sync.Once
	loaded     *Schema
	loadFailed error
)

// Default returns the embedded schema. The embedded document is fixed at
// build time, so a parse failure is a programming error and panics.
func Default() *Schema {
	loadOnce.Do(func() {
		loaded, loadFailed = Parse(defaultsYAML())
	})
	if loadFailed != nil {
		panic(loadFailed)
	}
	return loaded
}

// Parse builds a Schema from a YAML definition document.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse definition: %w", err)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("schema: definition has no sections")
	}

	s := &Schema{
		defaults: model.FormSnapshot{
			Sections: make(map[model.Section]model.SectionFields, len(doc.Sections)),
			Order:    make(model.FieldOrder, len(doc.Sections)),
		},
		mandatory: make(map[model.Section]map[string]struct{}, len(doc.Sections)),
		order:     make(model.FieldOrder, len(doc.Sections)),
	}

	for _, sec := range doc.Sections {
		section := model.Section(sec.Name)
		if !section.Valid() {
			return nil, fmt.Errorf("schema: unknown section %q", sec.Name)
		}
		if len(sec.Fields) == 0 {
			return nil, fmt.Errorf("schema: section %s has no fields", section)
		}

		fields := make(model.SectionFields, len(sec.Fields))
		order := make([]string, 0, len(sec.Fields))
		for _, field := range sec.Fields {
			if field.Key == "" {
				return nil, fmt.Errorf("schema: section %s has a field without a key", section)
			}
			if _, dup := fields[field.Key]; dup {
				return nil, fmt.Errorf("schema: section %s duplicates field %q", section, field.Key)
			}
			label := field.Label
			if label == "" {
				label = model.DisplayLabel(field.Key)
			}
			fields[field.Key] = model.FieldValue{Label: label}
			order = append(order, field.Key)
		}

		mandatory := make(map[string]struct{}, len(sec.Mandatory))
		for _, key := range sec.Mandatory {
			if _, ok := fields[key]; !ok {
				return nil, fmt.Errorf("schema: section %s marks unknown field %q mandatory", section, key)
			}
			mandatory[key] = struct{}{}
		}

		s.defaults.Sections[section] = fields
		s.defaults.Order[section] = order
		s.order[section] = append([]string(nil), order...)
		s.mandatory[section] = mandatory
	}

	for _, section := range model.Sections() {
		if _, ok := s.defaults.Sections[section]; !ok {
			return nil, fmt.Errorf("schema: definition missing section %s", section)
		}
	}

	return s, nil
}

// DefaultSnapshot returns a fresh deep copy of the schema defaults, ready to
// be mutated by a form session.
func (s *Schema) DefaultSnapshot() model.FormSnapshot {
	return s.defaults.Clone()
}

// DefaultOrder returns a copy of the schema-defined field order for section.
func (s *Schema) DefaultOrder(section model.Section) []string {
	return append([]string(nil), s.order[section]...)
}

// Mandatory reports whether the field can never be relabeled or removed.
func (s *Schema) Mandatory(section model.Section, key string) bool {
	_, ok := s.mandatory[section][key]
	return ok
}

// HasField reports whether key is a schema-defined field of section.
func (s *Schema) HasField(section model.Section, key string) bool {
	_, ok := s.defaults.Sections[section][key]
	return ok
}

// HeightOptions enumerates the selectable height values from 3'0" to 8'0".
func HeightOptions() []string {
	options := make([]string, 0, 61)
	for ft := 3; ft <= 8; ft++ {
		for inch := 0; inch <= 11; inch++ {
			options = append(options, fmt.Sprintf(`%d' %d"`, ft, inch))
			if ft == 8 && inch == 0 {
				return options
			}
		}
	}
	return options
}
