package render

import (
	"strings"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// dualColumnLayout renders the right-side-photo template: a flexible left
// content column with solid accent section headers, and a fixed-width right
// column holding only the profile photo. Entries inside the left column
// alternate strictly between two sub-columns by position index, they are
// never rebalanced.
type dualColumnLayout struct{}

func (dualColumnLayout) Name() string { return "dualcolumn" }

func (dualColumnLayout) Build(data model.FlattenedSnapshot) (*Node, error) {
	content := &Node{Tag: "div", Class: "dual-column-template"}

	header := &Node{Tag: "div", Class: "biodata-header"}
	header.Append(
		&Node{Tag: "div", Class: "biodata-logo", Text: "\U0001F549"},
		&Node{Tag: "div", Class: "biodata-title", Text: "BIO DATA"},
	)
	content.Append(header)

	left := &Node{Tag: "div", Class: "content-left"}
	for _, section := range model.Sections() {
		appendDualSection(left, data, section)
	}

	right := &Node{Tag: "div", Class: "content-right"}
	if data.ImagePreview != "" {
		right.Append(&Node{
			Tag:   "img",
			Class: "biodata-profile-image",
			Attrs: []Attr{
				{Name: "src", Value: data.ImagePreview},
				{Name: "alt", Value: "Profile"},
			},
		})
	} else {
		// The photo slot always renders; a missing upload shows a labelled
		// placeholder box instead of collapsing the column.
		right.Append(&Node{Tag: "div", Class: "photo-placeholder", Text: "Profile Photo"})
	}

	inner := &Node{Tag: "div", Class: "template-inner"}
	inner.Append(left, right)
	content.Append(inner)

	footer := &Node{Tag: "div", Class: "footer-disclaimer"}
	footer.Append(
		&Node{Tag: "span", Text: "This is a preview, and some data are hidden "},
		&Node{Tag: "span", Class: "highlight", Text: "the downloaded biodata will contain complete details"},
	)
	content.Append(
		footer,
		&Node{Tag: "div", Class: "footer-website", Text: siteURL},
	)
	return content, nil
}

func appendDualSection(left *Node, data model.FlattenedSnapshot, section model.Section) {
	entries := data.OrderedEntries(section)
	if len(entries) == 0 {
		return
	}

	left.Append(&Node{
		Tag:   "div",
		Class: "section-title",
		Text:  sanitizeText(strings.ToUpper(section.Title())),
	})

	first := &Node{Tag: "div", Class: "detail-column"}
	second := &Node{Tag: "div", Class: "detail-column"}
	for i, entry := range entries {
		item := &Node{Tag: "div", Class: "detail-item"}
		item.Append(
			&Node{Tag: "div", Class: "detail-label", Text: sanitizeText(model.DisplayLabel(entry.Key))},
			&Node{Tag: "div", Class: "detail-value", Text: sanitizeText(entry.Value)},
		)
		if i%2 == 0 {
			first.Append(item)
		} else {
			second.Append(item)
		}
	}

	grid := &Node{Tag: "div", Class: "detail-columns"}
	grid.Append(first, second)
	left.Append(grid)
}
