package render

import (
	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// standardLayout renders the single-column template family: optional centered
// photo, centered name heading, then one block per non-empty section with the
// section's entries split into two balanced columns.
type standardLayout struct{}

func (standardLayout) Name() string { return "standard" }

func (standardLayout) Build(data model.FlattenedSnapshot) (*Node, error) {
	content := &Node{Tag: "div", Class: "biodata-template"}

	if data.ImagePreview != "" {
		content.Append(&Node{
			Tag:   "img",
			Class: "biodata-profile-image",
			Attrs: []Attr{
				{Name: "src", Value: data.ImagePreview},
				{Name: "alt", Value: "Profile"},
			},
		})
	}

	if name := sanitizeText(data.Sections[model.SectionPersonal]["name"]); name != "" {
		content.Append(&Node{Tag: "h2", Class: "biodata-name", Text: name})
	}

	for _, section := range model.Sections() {
		if block := standardSection(data, section); block != nil {
			content.Append(block)
		}
	}
	return content, nil
}

// standardSection builds one section block, or returns nil when every entry
// is empty so the block is omitted entirely.
func standardSection(data model.FlattenedSnapshot, section model.Section) *Node {
	entries := data.OrderedEntries(section)
	if len(entries) == 0 {
		return nil
	}

	block := &Node{Tag: "div", Class: "biodata-section"}
	block.Append(&Node{Tag: "div", Class: "section-pill", Text: sanitizeText(section.Title())})

	// First half of the entries fills the left column, remainder the right.
	// An odd count leaves the extra entry on the left.
	mid := (len(entries) + 1) / 2
	left := &Node{Tag: "div", Class: "detail-column"}
	right := &Node{Tag: "div", Class: "detail-column"}
	for i, entry := range entries {
		target := left
		if i >= mid {
			target = right
		}
		target.Append(detailItem(entry))
	}

	columns := &Node{Tag: "div", Class: "detail-columns"}
	columns.Append(left, right)
	block.Append(columns)
	return block
}

func detailItem(entry model.Entry) *Node {
	item := &Node{Tag: "div", Class: "detail-item"}
	item.Append(
		&Node{Tag: "div", Class: "detail-label", Text: sanitizeText(model.DisplayLabel(entry.Key)) + ":"},
		&Node{Tag: "div", Class: "detail-value", Text: sanitizeText(entry.Value)},
	)
	return item
}
