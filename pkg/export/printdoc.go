package export

import (
	"embed"
	"fmt"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/render"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var (
	printDocsOnce sync.Once
	printDocs     map[string]*pongo2.Template
	printDocsErr  error
)

func printTemplates() (map[string]*pongo2.Template, error) {
	printDocsOnce.Do(func() {
		printDocs = make(map[string]*pongo2.Template, 2)
		for _, name := range []string{"standard", "dualcolumn"} {
			raw, err := templateFS.ReadFile("templates/" + name + ".html.tmpl")
			if err != nil {
				printDocsErr = fmt.Errorf("export: read print document %q: %w", name, err)
				return
			}
			tmpl, err := pongo2.FromString(string(raw))
			if err != nil {
				printDocsErr = fmt.Errorf("export: compile print document %q: %w", name, err)
				return
			}
			printDocs[name] = tmpl
		}
	})
	return printDocs, printDocsErr
}

// PrintDocument wraps a rendered layout in the self-contained page shell used
// for printing and rasterization. The shell resolves the skin from the same
// layout the preview was built from, so preview and export can never drift.
// With autoPrint set the page triggers the browser print dialog on load.
func PrintDocument(layout *render.Layout, autoPrint bool) (string, error) {
	if layout == nil {
		return "", fmt.Errorf("export: layout is required")
	}

	docs, err := printTemplates()
	if err != nil {
		return "", err
	}

	name := "standard"
	title := fmt.Sprintf("Biodata Template - %d", int(layout.Template))
	if layout.Template == model.TemplateDualColumn {
		name = "dualcolumn"
		title = "Biodata Template 5 - Right Side Image"
	}

	out, err := docs[name].Execute(pongo2.Context{
		"title":        title,
		"border_image": layout.Skin,
		"content":      layout.HTML(),
		"auto_print":   autoPrint,
	})
	if err != nil {
		return "", fmt.Errorf("export: execute print document %q: %w", name, err)
	}
	return out, nil
}
