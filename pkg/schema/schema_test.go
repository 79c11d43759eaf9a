package schema

import (
	"testing"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

func TestDefaultSnapshotShape(t *testing.T) {
	snap := Default().DefaultSnapshot()

	wantCounts := map[model.Section]int{
		model.SectionPersonal: 10,
		model.SectionFamily:   13,
		model.SectionHabits:   6,
	}
	for section, want := range wantCounts {
		if got := len(snap.Sections[section]); got != want {
			t.Fatalf("section %s: %d fields, want %d", section, got, want)
		}
		if got := len(snap.Order[section]); got != want {
			t.Fatalf("section %s order: %d keys, want %d", section, got, want)
		}
	}

	if snap.Sections[model.SectionPersonal]["date_of_birth"].Label != "Birth Date" {
		t.Fatalf("unexpected default label: %+v", snap.Sections[model.SectionPersonal]["date_of_birth"])
	}
	if snap.Order[model.SectionPersonal][0] != "name" {
		t.Fatalf("personal order should start with name, got %v", snap.Order[model.SectionPersonal])
	}
}

func TestDefaultSnapshotCopiesAreIndependent(t *testing.T) {
	first := Default().DefaultSnapshot()
	first.Sections[model.SectionPersonal]["name"] = model.FieldValue{Label: "Name", Value: "mutated"}

	second := Default().DefaultSnapshot()
	if second.Sections[model.SectionPersonal]["name"].Value != "" {
		t.Fatalf("schema defaults were mutated through a snapshot copy")
	}
}

func TestMandatorySets(t *testing.T) {
	s := Default()

	cases := []struct {
		section model.Section
		key     string
		want    bool
	}{
		{model.SectionPersonal, "name", true},
		{model.SectionPersonal, "date_of_birth", true},
		{model.SectionPersonal, "place_of_birth", true},
		{model.SectionPersonal, "height", false},
		{model.SectionFamily, "father_name", true},
		{model.SectionFamily, "mother_name", true},
		{model.SectionFamily, "gotra", false},
		{model.SectionHabits, "smoke", false},
	}
	for _, tc := range cases {
		if got := s.Mandatory(tc.section, tc.key); got != tc.want {
			t.Fatalf("Mandatory(%s, %s) = %v, want %v", tc.section, tc.key, got, tc.want)
		}
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown section": "sections:\n  - name: ContactDetails\n    fields:\n      - key: phone\n",
		"empty fields":    "sections:\n  - name: PersonalDetails\n    fields: []\n",
		"bad mandatory":   "sections:\n  - name: PersonalDetails\n    mandatory: [missing]\n    fields:\n      - key: name\n",
		"not yaml":        "{{{",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestHeightOptions(t *testing.T) {
	options := HeightOptions()
	if len(options) != 61 {
		t.Fatalf("expected 61 options, got %d", len(options))
	}
	if options[0] != `3' 0"` {
		t.Fatalf("unexpected first option %q", options[0])
	}
	if options[len(options)-1] != `8' 0"` {
		t.Fatalf("unexpected last option %q", options[len(options)-1])
	}
}
