package render

import (
	"fmt"

	"github.com/goliatone/go-theme"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// skinTheme carries the decorative border art for every template as a theme
// manifest. Template 6 is declared but not offered yet; selecting it falls
// back to the free skin.
var skinTheme = &theme.Manifest{
	Name:    "biodata-borders",
	Version: "1.0.0",
	Assets: theme.Assets{
		Prefix: "assets/border",
		Files: map[string]string{
			"border.free": "White.png",
			"border.2":    "bg0.png",
			"border.3":    "bg3.jpg",
			"border.4":    "bg8.jpg",
			"border.5":    "bg9.jpg",
			"border.6":    "bg10.jpg",
		},
	},
}

// SkinAsset resolves the border image path for a template choice. The free
// template always maps to the plain white skin, and unknown choices degrade
// to it rather than failing the render.
func SkinAsset(choice model.TemplateChoice) string {
	key := "border.free"
	if choice != model.TemplateFree {
		key = fmt.Sprintf("border.%d", int(choice))
	}
	file, ok := skinTheme.Assets.Files[key]
	if !ok {
		file = skinTheme.Assets.Files["border.free"]
	}
	return skinTheme.Assets.Prefix + "/" + file
}
