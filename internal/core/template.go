package core

import (
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ParseTemplate compiles content with the sprig function map.
func ParseTemplate(name, content string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
}
