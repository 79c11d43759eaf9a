package schema

import (
	_ "embed"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

func defaultsYAML() []byte {
	return embeddedDefaults
}
