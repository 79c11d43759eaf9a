package render

import (
	"strings"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// Attr is a single serialized HTML attribute.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a layout tree. Text is stored already sanitized
// (see sanitize.go) and is written verbatim; attribute values are escaped at
// serialization time.
type Node struct {
	Tag      string
	Class    string
	Style    string
	Text     string
	Attrs    []Attr
	Children []*Node
}

// Append adds children and returns the receiver for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Find returns the first node in the subtree with the given class token,
// depth-first, or nil.
func (n *Node) Find(class string) *Node {
	if n == nil {
		return nil
	}
	for _, token := range strings.Fields(n.Class) {
		if token == class {
			return n
		}
	}
	for _, child := range n.Children {
		if found := child.Find(class); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node in the subtree carrying the class token, in
// document order.
func (n *Node) FindAll(class string) []*Node {
	var out []*Node
	n.findAll(class, &out)
	return out
}

func (n *Node) findAll(class string, out *[]*Node) {
	if n == nil {
		return
	}
	for _, token := range strings.Fields(n.Class) {
		if token == class {
			*out = append(*out, n)
			break
		}
	}
	for _, child := range n.Children {
		child.findAll(class, out)
	}
}

// TextContent concatenates the subtree's text in document order.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.textContent(&b)
	return b.String()
}

func (n *Node) textContent(b *strings.Builder) {
	if n == nil {
		return
	}
	b.WriteString(n.Text)
	for _, child := range n.Children {
		child.textContent(b)
	}
}

var voidTags = map[string]struct{}{
	"img": {},
	"br":  {},
	"hr":  {},
}

// HTML serializes the subtree. Attribute order is fixed (class, style, then
// declared attributes) so the output is byte-for-byte reproducible for
// identical trees.
func (n *Node) HTML() string {
	var b strings.Builder
	n.writeTo(&b)
	return b.String()
}

func (n *Node) writeTo(b *strings.Builder) {
	b.WriteString("<")
	b.WriteString(n.Tag)
	if n.Class != "" {
		writeAttr(b, "class", n.Class)
	}
	if n.Style != "" {
		writeAttr(b, "style", n.Style)
	}
	for _, attr := range n.Attrs {
		writeAttr(b, attr.Name, attr.Value)
	}
	b.WriteString(">")
	if _, void := voidTags[n.Tag]; void {
		return
	}
	b.WriteString(n.Text)
	for _, child := range n.Children {
		child.writeTo(b)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteString(">")
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(escapeAttr(value))
	b.WriteString(`"`)
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeAttr(value string) string {
	return attrEscaper.Replace(value)
}

// Layout is the rendered projection of a frozen snapshot into one template.
// A Layout is always built from scratch, so no state leaks between template
// selections.
type Layout struct {
	Template model.TemplateChoice
	Skin     string
	Root     *Node
}

// HTML serializes the full layout container.
func (l *Layout) HTML() string {
	return l.Root.HTML()
}
