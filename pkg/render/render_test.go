package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

func flatSnapshot(personal, family, habits map[string]string, order model.FieldOrder, image string) model.FlattenedSnapshot {
	return model.FlattenedSnapshot{
		Sections: map[model.Section]map[string]string{
			model.SectionPersonal: personal,
			model.SectionFamily:   family,
			model.SectionHabits:   habits,
		},
		Order:        order,
		ImagePreview: image,
	}
}

func sampleData() model.FlattenedSnapshot {
	return flatSnapshot(
		map[string]string{"name": "Asha Rao", "date_of_birth": "1998-05-02"},
		map[string]string{"father_name": "Ravi Rao"},
		map[string]string{},
		model.FieldOrder{
			model.SectionPersonal: {"name", "date_of_birth"},
			model.SectionFamily:   {"father_name"},
		},
		"",
	)
}

func TestRenderFreeTemplate(t *testing.T) {
	layout, err := New().Render(sampleData(), model.TemplateFree)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	sections := layout.Root.FindAll("biodata-section")
	if len(sections) != 2 {
		t.Fatalf("section blocks = %d, want 2", len(sections))
	}
	heading := layout.Root.Find("biodata-name")
	if heading == nil || heading.Text != "Asha Rao" {
		t.Fatalf("name heading = %+v, want Asha Rao", heading)
	}
	if layout.Root.Find("premium-watermark") != nil {
		t.Fatal("free template must not carry a watermark")
	}
	if layout.Root.Find("free-credit") == nil {
		t.Fatal("free template must carry the credit line")
	}
	if layout.Root.Find("dual-column-template") != nil {
		t.Fatal("free template must not use the dual-column structure")
	}
	if !strings.Contains(layout.Root.Class, "free-border") {
		t.Fatalf("container class = %q, want free-border", layout.Root.Class)
	}
}

func TestRenderDualColumnTemplate(t *testing.T) {
	layout, err := New().Render(sampleData(), model.TemplateDualColumn)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	placeholder := layout.Root.Find("photo-placeholder")
	if placeholder == nil || placeholder.Text != "Profile Photo" {
		t.Fatalf("photo placeholder = %+v, want labelled placeholder", placeholder)
	}
	if layout.Root.Find("premium-watermark") == nil {
		t.Fatal("dual-column template must carry a watermark")
	}
	if layout.Root.Find("content-left") == nil || layout.Root.Find("content-right") == nil {
		t.Fatal("dual-column template must have left and right columns")
	}
	if layout.Root.Find("biodata-title").Text != "BIO DATA" {
		t.Fatal("dual-column template must carry the BIO DATA header")
	}
}

func TestRenderDualColumnPhotoReplacesPlaceholder(t *testing.T) {
	data := sampleData()
	data.ImagePreview = "data:image/png;base64,Zm9v"

	layout, err := New().Render(data, model.TemplateDualColumn)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if layout.Root.Find("photo-placeholder") != nil {
		t.Fatal("placeholder must disappear when a photo is present")
	}
	img := layout.Root.Find("biodata-profile-image")
	if img == nil || img.Attrs[0].Value != data.ImagePreview {
		t.Fatalf("photo img = %+v", img)
	}
}

func TestStandardLayoutOmitsPhotoWhenAbsent(t *testing.T) {
	layout, err := New().Render(sampleData(), model.TemplateFree)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if layout.Root.Find("biodata-profile-image") != nil {
		t.Fatal("standard layout must omit the photo element when no image is set")
	}
}

func TestBalancedSplit(t *testing.T) {
	data := flatSnapshot(
		map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"},
		nil, nil,
		model.FieldOrder{model.SectionPersonal: {"a", "b", "c", "d", "e"}},
		"",
	)

	layout, err := New().Render(data, model.TemplateChoice(3))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	columns := layout.Root.Find("biodata-section").FindAll("detail-column")
	if len(columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(columns))
	}
	if got := len(columns[0].Children); got != 3 {
		t.Fatalf("left column entries = %d, want 3", got)
	}
	if got := len(columns[1].Children); got != 2 {
		t.Fatalf("right column entries = %d, want 2", got)
	}
	// Balanced split keeps the first half contiguous on the left.
	if label := columns[0].Children[0].Find("detail-label").Text; label != "A:" {
		t.Fatalf("first left label = %q, want A:", label)
	}
	if label := columns[1].Children[0].Find("detail-label").Text; label != "D:" {
		t.Fatalf("first right label = %q, want D:", label)
	}
}

func TestAlternatingSplit(t *testing.T) {
	data := flatSnapshot(
		map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"},
		nil, nil,
		model.FieldOrder{model.SectionPersonal: {"a", "b", "c", "d", "e"}},
		"",
	)

	layout, err := New().Render(data, model.TemplateDualColumn)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	columns := layout.Root.Find("detail-columns").FindAll("detail-column")
	if len(columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(columns))
	}
	if got := len(columns[0].Children); got != 3 {
		t.Fatalf("first sub-column entries = %d, want 3", got)
	}
	wantFirst := []string{"A", "C", "E"}
	for i, item := range columns[0].Children {
		if label := item.Find("detail-label").Text; label != wantFirst[i] {
			t.Fatalf("first sub-column[%d] label = %q, want %q", i, label, wantFirst[i])
		}
	}
	wantSecond := []string{"B", "D"}
	for i, item := range columns[1].Children {
		if label := item.Find("detail-label").Text; label != wantSecond[i] {
			t.Fatalf("second sub-column[%d] label = %q, want %q", i, label, wantSecond[i])
		}
	}
}

func TestEmptySectionsOmitted(t *testing.T) {
	data := flatSnapshot(
		map[string]string{"name": "Asha Rao"},
		map[string]string{"father_name": "   "},
		map[string]string{},
		model.FieldOrder{
			model.SectionPersonal: {"name"},
			model.SectionFamily:   {"father_name"},
		},
		"",
	)

	for _, choice := range []model.TemplateChoice{model.TemplateFree, model.TemplateDualColumn} {
		layout, err := New().Render(data, choice)
		if err != nil {
			t.Fatalf("Render(%d): %v", int(choice), err)
		}
		html := layout.HTML()
		if strings.Contains(html, "Family Details") || strings.Contains(html, "FAMILY DETAILS") {
			t.Fatalf("template %d: section with only blank values must be omitted", int(choice))
		}
		if strings.Contains(html, "Habits") {
			t.Fatalf("template %d: empty section must be omitted", int(choice))
		}
	}
}

func TestWatermarkOnRestrictedTemplates(t *testing.T) {
	for _, choice := range []model.TemplateChoice{2, 3, 4, 5} {
		layout, err := New().Render(sampleData(), choice)
		if err != nil {
			t.Fatalf("Render(%d): %v", int(choice), err)
		}
		if layout.Root.Find("premium-watermark") == nil {
			t.Fatalf("template %d: watermark missing", int(choice))
		}
		if layout.Root.Find("free-credit") != nil {
			t.Fatalf("template %d: credit line must only appear on the free template", int(choice))
		}
	}
}

func TestSkinAssets(t *testing.T) {
	cases := []struct {
		choice model.TemplateChoice
		want   string
	}{
		{model.TemplateFree, "assets/border/White.png"},
		{2, "assets/border/bg0.png"},
		{3, "assets/border/bg3.jpg"},
		{4, "assets/border/bg8.jpg"},
		{model.TemplateDualColumn, "assets/border/bg9.jpg"},
		{9, "assets/border/White.png"},
	}
	for _, tc := range cases {
		if got := SkinAsset(tc.choice); got != tc.want {
			t.Fatalf("SkinAsset(%d) = %q, want %q", int(tc.choice), got, tc.want)
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := New()
	first, err := r.Render(sampleData(), model.TemplateDualColumn)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(sampleData(), model.TemplateDualColumn)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first.HTML() != second.HTML() {
		t.Fatal("identical input must serialize identically")
	}
}

func TestNoResidueAcrossReselection(t *testing.T) {
	r := New()
	if _, err := r.Render(sampleData(), model.TemplateFree); err != nil {
		t.Fatalf("Render: %v", err)
	}
	layout, err := r.Render(sampleData(), model.TemplateChoice(2))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if layout.Root.Find("free-credit") != nil || strings.Contains(layout.Root.Class, "free-border") {
		t.Fatal("free-only artifacts leaked into a restricted template")
	}
}

type stubSurface struct{ ready bool }

func (s stubSurface) Ready() bool { return s.ready }

func TestRenderSurfaceUnavailable(t *testing.T) {
	r := New(WithSurface(stubSurface{ready: false}))
	if _, err := r.Render(sampleData(), model.TemplateFree); !errors.Is(err, ErrNoSurface) {
		t.Fatalf("err = %v, want ErrNoSurface", err)
	}

	r = New(WithSurface(stubSurface{ready: true}))
	if _, err := r.Render(sampleData(), model.TemplateFree); err != nil {
		t.Fatalf("Render with ready surface: %v", err)
	}
}

func TestRegistryGetUnknownListsBuilders(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(standardLayout{})
	r.MustRegister(dualColumnLayout{})

	_, err := r.Get("sidebar")
	if err == nil {
		t.Fatal("unknown builder must fail")
	}
	for _, name := range r.List() {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("err = %v, want registered name %q listed", err, name)
		}
	}
}

func TestValuesAreSanitized(t *testing.T) {
	data := flatSnapshot(
		map[string]string{"name": `<script>alert("x")</script>Asha`},
		nil, nil,
		model.FieldOrder{model.SectionPersonal: {"name"}},
		"",
	)
	layout, err := New().Render(data, model.TemplateFree)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if html := layout.HTML(); strings.Contains(html, "<script>") {
		t.Fatal("markup in values must be stripped")
	}
}
