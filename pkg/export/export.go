package export

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/render"
)

// PDFBackend produces PDF bytes from a self-contained HTML document.
type PDFBackend interface {
	PDF(ctx context.Context, doc string) ([]byte, error)
}

// Exporter drives both export strategies over one renderer: print documents
// for the browser print dialog, and direct PDF bytes through a backend.
type Exporter struct {
	renderer *render.Renderer
	backend  PDFBackend
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRenderer substitutes the renderer used to build layouts.
func WithRenderer(renderer *render.Renderer) Option {
	return func(e *Exporter) {
		if renderer != nil {
			e.renderer = renderer
		}
	}
}

// WithBackend substitutes the PDF backend.
func WithBackend(backend PDFBackend) Option {
	return func(e *Exporter) {
		if backend != nil {
			e.backend = backend
		}
	}
}

// New returns an exporter wired to a default renderer and the headless
// browser rasterizer.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		renderer: render.New(),
		backend:  NewRasterizer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document renders the snapshot into the chosen template and wraps it in the
// print shell. With autoPrint the returned page triggers printing on load.
func (e *Exporter) Document(data model.FlattenedSnapshot, choice model.TemplateChoice, autoPrint bool) (string, error) {
	layout, err := e.renderer.Render(data, choice)
	if err != nil {
		return "", fmt.Errorf("export: render template %d: %w", int(choice), err)
	}
	return PrintDocument(layout, autoPrint)
}

// PDF renders the snapshot and rasterizes the resulting document.
func (e *Exporter) PDF(ctx context.Context, data model.FlattenedSnapshot, choice model.TemplateChoice) ([]byte, error) {
	doc, err := e.Document(data, choice, false)
	if err != nil {
		return nil, err
	}
	return e.backend.PDF(ctx, doc)
}

// SaveFile rasterizes the snapshot and writes the PDF to path. The filename
// is the caller's choice; Filename provides a sensible default.
func (e *Exporter) SaveFile(ctx context.Context, data model.FlattenedSnapshot, choice model.TemplateChoice, path string) error {
	pdf, err := e.PDF(ctx, data, choice)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

var filenameTokens = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Filename derives a download name from the snapshot's name field, falling
// back to a generic name when it is empty.
func Filename(data model.FlattenedSnapshot) string {
	name := strings.TrimSpace(data.Sections[model.SectionPersonal]["name"])
	cleaned := strings.Trim(filenameTokens.ReplaceAllString(name, "_"), "_")
	if cleaned == "" {
		return "Biodata.pdf"
	}
	return cleaned + "_Biodata.pdf"
}
