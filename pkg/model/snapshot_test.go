package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleSnapshot() FormSnapshot {
	return FormSnapshot{
		Sections: map[Section]SectionFields{
			SectionPersonal: {
				"name":   {Label: "Name", Value: "Asha Rao"},
				"height": {Label: "Height", Value: `5' 4"`},
			},
			SectionFamily: {
				"father_name": {Label: "Father Name", Value: "Ravi Rao"},
			},
		},
		Order: FieldOrder{
			SectionPersonal: {"name", "height"},
			SectionFamily:   {"father_name"},
		},
		ImagePreview: "data:image/png;base64,xyz",
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := sampleSnapshot()
	clone := original.Clone()

	clone.Sections[SectionPersonal]["name"] = FieldValue{Label: "Name", Value: "Changed"}
	clone.Order[SectionPersonal][0] = "height"

	if original.Sections[SectionPersonal]["name"].Value != "Asha Rao" {
		t.Fatalf("clone mutation leaked into original section data")
	}
	if original.Order[SectionPersonal][0] != "name" {
		t.Fatalf("clone mutation leaked into original order")
	}
}

func TestFlattenDropsLabels(t *testing.T) {
	flat := sampleSnapshot().Flatten()

	want := map[Section]map[string]string{
		SectionPersonal: {"name": "Asha Rao", "height": `5' 4"`},
		SectionFamily:   {"father_name": "Ravi Rao"},
	}
	if diff := cmp.Diff(want, flat.Sections); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}
	if flat.ImagePreview != "data:image/png;base64,xyz" {
		t.Fatalf("image reference not carried: %q", flat.ImagePreview)
	}
}

func TestOrderedEntriesSkipsBlankValues(t *testing.T) {
	flat := FlattenedSnapshot{
		Sections: map[Section]map[string]string{
			SectionPersonal: {
				"name":      "Asha Rao",
				"education": "   ",
				"height":    "",
				"city":      "Pune",
			},
		},
		Order: FieldOrder{
			SectionPersonal: {"name", "education", "height", "city"},
		},
	}

	got := flat.OrderedEntries(SectionPersonal)
	want := []Entry{{Key: "name", Value: "Asha Rao"}, {Key: "city", Value: "Pune"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderedEntriesAppendsKeysMissingFromOrder(t *testing.T) {
	flat := FlattenedSnapshot{
		Sections: map[Section]map[string]string{
			SectionFamily: {
				"father_name": "Ravi Rao",
				"gotra":       "Kashyap",
				"kuldevi":     "Ambaji",
			},
		},
		Order: FieldOrder{
			SectionFamily: {"father_name"},
		},
	}

	got := flat.OrderedEntries(SectionFamily)
	want := []Entry{
		{Key: "father_name", Value: "Ravi Rao"},
		{Key: "gotra", Value: "Kashyap"},
		{Key: "kuldevi", Value: "Ambaji"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}
