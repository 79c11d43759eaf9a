// Package reconcile merges a persisted form snapshot against the schema
// defaults. Persisted data is treated as untrusted: it may be partial,
// corrupt or carry stale order metadata, and reconciliation must never lose
// a field value that survived in the snapshot.
package reconcile

import (
	"encoding/json"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/schema"
)

// Partial is the tolerant decoding of a persisted snapshot. Every region is
// decoded independently, so a malformed order map, section or field cannot
// poison its siblings.
type Partial struct {
	Sections     map[string]map[string]PartialField
	Order        map[string]json.RawMessage
	ImagePreview string
}

// UnmarshalJSON decodes region by region. Only a payload that is not a JSON
// object at all fails; a corrupt formData, section or fieldOrder value is
// dropped while everything intact around it survives.
func (p *Partial) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	*p = Partial{}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(top["formData"], &sections); err == nil {
		p.Sections = make(map[string]map[string]PartialField, len(sections))
		for name, raw := range sections {
			var fields map[string]PartialField
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue
			}
			p.Sections[name] = fields
		}
	}

	var order map[string]json.RawMessage
	if err := json.Unmarshal(top["fieldOrder"], &order); err == nil {
		p.Order = order
	}

	var image string
	if err := json.Unmarshal(top["imagePreview"], &image); err == nil {
		p.ImagePreview = image
	}
	return nil
}

// PartialField mirrors a persisted field entry. Non-object or otherwise
// malformed entries decode to the zero value instead of failing the whole
// snapshot.
type PartialField struct {
	Label string
	Value string
}

// UnmarshalJSON accepts the canonical {label, value} object and silently
// degrades anything else to an empty field.
func (f *PartialField) UnmarshalJSON(data []byte) error {
	var obj struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		*f = PartialField{}
		return nil
	}
	*f = PartialField{Label: obj.Label, Value: obj.Value}
	return nil
}

// ParsePartial decodes a persisted snapshot payload. Any parse failure yields
// nil; callers treat nil as "start from defaults".
func ParsePartial(data []byte) *Partial {
	if len(data) == 0 {
		return nil
	}
	var p Partial
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

// Reconcile merges persisted state into a full snapshot built from the schema
// defaults. It never fails: absent or malformed input degrades to defaults,
// field by field, without discarding values that did survive.
func Reconcile(persisted *Partial, s *schema.Schema) model.FormSnapshot {
	out := s.DefaultSnapshot()
	if persisted == nil {
		return out
	}

	for _, section := range model.Sections() {
		saved, ok := persisted.Sections[string(section)]
		if !ok {
			continue
		}
		fields := out.Sections[section]

		// Schema-defined fields keep their default label unless the
		// snapshot carries an override; the value always comes from the
		// snapshot when the key is present.
		for key := range fields {
			savedField, present := saved[key]
			if !present {
				continue
			}
			field := fields[key]
			field.Value = savedField.Value
			if savedField.Label != "" {
				field.Label = savedField.Label
			}
			fields[key] = field
		}

		// Custom fields the user added previously are copied verbatim.
		for key, savedField := range saved {
			if _, known := fields[key]; known {
				continue
			}
			fields[key] = model.FieldValue{Label: savedField.Label, Value: savedField.Value}
		}
	}

	for _, section := range model.Sections() {
		keys, ok := wellFormedOrder(persisted.Order[string(section)])
		if !ok {
			// Invalid order metadata for this section only; the default
			// already in place stands and other sections are untouched.
			continue
		}
		out.Order[section] = keys
	}

	if persisted.ImagePreview != "" {
		out.ImagePreview = persisted.ImagePreview
	}

	return out
}

func wellFormedOrder(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, false
	}
	return keys, true
}
