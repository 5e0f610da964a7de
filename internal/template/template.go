// Package template holds the built-in project starters. Creating a project
// seeds its initial file set from one of these.
//
// The starters live in templates.yaml, compiled into the binary with
// go:embed — no files to ship alongside the executable, and the manifest is
// parsed exactly once at init. Adding a starter is a YAML edit, not a code
// change.
package template

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var manifest []byte

// File is one starter file within a template.
type File struct {
	Path     string `yaml:"path"`
	Language string `yaml:"language"`
	Content  string `yaml:"content"`
}

// Template is a named starter file set.
type Template struct {
	Description string `yaml:"description"`
	Files       []File `yaml:"files"`
}

var registry map[string]Template

func init() {
	var doc struct {
		Templates map[string]Template `yaml:"templates"`
	}
	// The manifest is embedded and validated by the tests in this package;
	// a parse failure here is a build defect, so panicking at init is right.
	if err := yaml.Unmarshal(manifest, &doc); err != nil {
		panic(fmt.Sprintf("template: parsing embedded manifest: %v", err))
	}
	registry = doc.Templates
}

// Get returns the template for name. The second return is false for an
// unknown name — callers decide whether that's a validation error or a
// fall-back-to-default situation.
func Get(name string) (Template, bool) {
	t, ok := registry[name]
	return t, ok
}

// Names returns the available template names, sorted for stable display.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
