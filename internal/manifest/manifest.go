// Package manifest describes a binding graph in YAML so it can be checked
// without the Go code that builds it. Every binding gets a stub factory.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/xraph/trellis"
)

// Manifest is the root document.
//
//	name: shop
//	scopes:
//	  - [request]
//	generators:
//	  - type: Repository
//	    requires: [Database]
//	bindings:
//	  - key: Config
//	  - key: Database
//	    requires: [Config]
//	    optional: [Tracer]
//	  - key: Session
//	    scope: [request]
//	    requires: [Database, "Repository#users"]
//	  - key: "Repository#orders"
//	    generate: true
type Manifest struct {
	Name       string          `yaml:"name"`
	Scopes     [][]string      `yaml:"scopes"`
	Generators []GeneratorSpec `yaml:"generators"`
	Bindings   []BindingSpec   `yaml:"bindings"`

	// Path is the file the manifest was loaded from, empty for Parse.
	Path string `yaml:"-"`
}

// BindingSpec is one binding or generation request.
type BindingSpec struct {
	Key      string   `yaml:"key"`
	Scope    []string `yaml:"scope"`
	Requires []string `yaml:"requires"`
	Optional []string `yaml:"optional"`
	Generate bool     `yaml:"generate"`

	Line int `yaml:"-"`
}

// UnmarshalYAML records the line of the binding for diagnostics.
func (b *BindingSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain BindingSpec

	if err := node.Decode((*plain)(b)); err != nil {
		return err
	}

	b.Line = node.Line

	return nil
}

// GeneratorSpec makes every key of a type generatable. Generated bindings
// depend on the listed keys.
type GeneratorSpec struct {
	Type     string   `yaml:"type"`
	Requires []string `yaml:"requires"`
	Optional []string `yaml:"optional"`
}

// Stub is the instance every manifest factory produces.
type Stub struct {
	Key trellis.Key
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}

	m.Path = path

	return m, nil
}

// Parse decodes and checks a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the manifest structure, not the graph it describes.
func (m *Manifest) Validate() error {
	var errs []error

	for i, b := range m.Bindings {
		if strings.TrimSpace(b.Key) == "" {
			errs = append(errs, fmt.Errorf("binding %d (line %d): key is required", i, b.Line))
		}

		if b.Generate && (len(b.Requires) > 0 || len(b.Optional) > 0) {
			errs = append(errs, fmt.Errorf("binding %q (line %d): generated bindings take their dependencies from the generator", b.Key, b.Line))
		}
	}

	for i, g := range m.Generators {
		if strings.TrimSpace(g.Type) == "" {
			errs = append(errs, fmt.Errorf("generator %d: type is required", i))
		}
	}

	return multierr.Combine(errs...)
}

// ParseKey parses "Type" or "Type#name". The same type name always maps to
// the same type descriptor.
func ParseKey(ref string) trellis.Key {
	typ, name, found := strings.Cut(strings.TrimSpace(ref), "#")

	key := trellis.NewKey(trellis.NewType(typ), nil)
	if found {
		key = key.Named(trellis.Named(name))
	}

	return key
}

// Scope converts scope names into a scope path.
func Scope(names []string) []trellis.Scope {
	path := make([]trellis.Scope, len(names))
	for i, n := range names {
		path[i] = trellis.NewScope(n)
	}

	return path
}

// Module builds a module with stub factories for every binding and a stub
// generator for every generator entry.
func (m *Manifest) Module() *trellis.Module {
	module := trellis.NewModule()

	for _, path := range m.Scopes {
		module.DeclareScope(Scope(path)...)
	}

	for _, g := range m.Generators {
		deps := dependencies(g.Requires, g.Optional)

		module.Generator(trellis.NewType(g.Type), trellis.GeneratorFunc(func(_ []trellis.Scope, key trellis.Key) *trellis.Binding {
			return stub(key, deps)
		}))
	}

	for _, b := range m.Bindings {
		key := ParseKey(b.Key)
		scope := Scope(b.Scope)

		if b.Generate {
			module.Generate(key, scope...)

			continue
		}

		binding := stub(key, dependencies(b.Requires, b.Optional)).At(m.location(b))
		module.Bind(key, binding, scope...)
	}

	return module
}

func (m *Manifest) location(b BindingSpec) *trellis.Location {
	file := m.Path
	if file == "" {
		file = "manifest"
	}

	return &trellis.Location{File: file, Line: b.Line, Function: b.Key}
}

func dependencies(requires, optional []string) []trellis.Dependency {
	deps := make([]trellis.Dependency, 0, len(requires)+len(optional))
	for _, r := range requires {
		deps = append(deps, trellis.Require(ParseKey(r)))
	}

	for _, o := range optional {
		deps = append(deps, trellis.Optional(ParseKey(o)))
	}

	return deps
}

func stub(key trellis.Key, deps []trellis.Dependency) *trellis.Binding {
	return trellis.NewBinding(func([]any) (any, error) {
		return &Stub{Key: key}, nil
	}, deps...)
}
