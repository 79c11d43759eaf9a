package render

import (
	"errors"
	"fmt"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

const (
	watermarkText = "BhudevNetworkvivha"
	siteURL       = "www.CreateMyBiodata.com"
	creditText    = "Created with " + siteURL
)

// ErrNoSurface is returned when a render surface was configured and reports
// itself unavailable at render time.
var ErrNoSurface = errors.New("render: render surface unavailable")

// Surface is an optional capability check supplied by the presentation layer.
// The renderer never inspects the surface beyond readiness.
type Surface interface {
	Ready() bool
}

// Renderer projects frozen snapshots into layout trees. Every Render call
// builds a fresh container, so artifacts from a previous template selection
// can never leak into the next one.
type Renderer struct {
	registry *Registry
	surface  Surface
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSurface attaches a readiness check that gates every Render call.
func WithSurface(surface Surface) Option {
	return func(r *Renderer) {
		r.surface = surface
	}
}

// WithBuilder registers an additional layout family. Registering a name that
// is already taken panics, matching init-time wiring expectations.
func WithBuilder(builder LayoutBuilder) Option {
	return func(r *Renderer) {
		r.registry.MustRegister(builder)
	}
}

// New returns a renderer with the standard and dual-column layout families
// registered.
func New(opts ...Option) *Renderer {
	r := &Renderer{registry: NewRegistry()}
	r.registry.MustRegister(standardLayout{})
	r.registry.MustRegister(dualColumnLayout{})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the layout for one template choice. The same data and choice
// always produce an identical tree.
func (r *Renderer) Render(data model.FlattenedSnapshot, choice model.TemplateChoice) (*Layout, error) {
	if r.surface != nil && !r.surface.Ready() {
		return nil, ErrNoSurface
	}

	name := "standard"
	if choice == model.TemplateDualColumn {
		name = "dualcolumn"
	}
	builder, err := r.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("render: template %d: %w", int(choice), err)
	}

	content, err := builder.Build(data)
	if err != nil {
		return nil, fmt.Errorf("render: template %d: %w", int(choice), err)
	}

	skin := SkinAsset(choice)
	container := &Node{Tag: "div", Attrs: []Attr{{Name: "id", Value: "template-content"}}}
	switch {
	case choice == model.TemplateFree:
		container.Class = "template-content free-border"
		container.Style = backgroundStyle(skin)
	case choice == model.TemplateDualColumn:
		// The crimson frame is drawn by the page shell, not a border image.
		container.Class = "template-content dual-column-frame"
	default:
		container.Class = fmt.Sprintf("template-content border-style-%d", int(choice))
		container.Style = backgroundStyle(skin)
	}
	container.Append(content)

	if choice.Restricted() {
		container.Append(&Node{Tag: "div", Class: "premium-watermark", Text: watermarkText})
	}
	if choice == model.TemplateFree {
		container.Append(&Node{Tag: "div", Class: "free-credit", Text: creditText})
	}

	return &Layout{Template: choice, Skin: skin, Root: container}, nil
}

func backgroundStyle(skin string) string {
	return fmt.Sprintf("background-image:url('%s')", skin)
}
