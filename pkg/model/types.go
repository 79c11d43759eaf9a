package model

// Section identifies one of the fixed form groupings. The set is closed:
// sections cannot be added or removed, only the fields inside them.
type Section string

const (
	SectionPersonal Section = "PersonalDetails"
	SectionFamily   Section = "FamilyDetails"
	SectionHabits   Section = "HabitsDeclaration"
)

// Sections lists the schema sections in display order.
func Sections() []Section {
	return []Section{SectionPersonal, SectionFamily, SectionHabits}
}

// Valid reports whether s names a schema section.
func (s Section) Valid() bool {
	switch s {
	case SectionPersonal, SectionFamily, SectionHabits:
		return true
	default:
		return false
	}
}

// Title returns the display heading used by templates for the section.
func (s Section) Title() string {
	switch s {
	case SectionPersonal:
		return "Personal Details"
	case SectionFamily:
		return "Family Details"
	case SectionHabits:
		return "Habits & Declaration"
	default:
		return DisplayLabel(string(s))
	}
}

// FieldValue holds a single form entry. Label is user-renamable unless the
// field key belongs to the section's mandatory set.
type FieldValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SectionFields maps field keys to their entries. Map iteration order is
// never meaningful; display order lives in FieldOrder.
type SectionFields map[string]FieldValue

// FieldOrder maps each section to the ordered sequence of its field keys.
// Invariant: every key present in the section appears exactly once.
type FieldOrder map[Section][]string

// TemplateChoice selects a visual template. Template 1 is the free tier;
// higher ids require the registration gate before export.
type TemplateChoice int

const (
	// TemplateFree is the unrestricted template with the minimalist frame.
	TemplateFree TemplateChoice = 1
	// TemplateDualColumn is the restricted right-side-photo layout.
	TemplateDualColumn TemplateChoice = 5
)

// Restricted reports whether exporting this template requires registration.
func (t TemplateChoice) Restricted() bool {
	return t != TemplateFree
}
