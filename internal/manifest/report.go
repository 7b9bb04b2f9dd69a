package manifest

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/trellis"
)

// Report is the per-scope view of a compiled manifest.
type Report struct {
	Name   string        `yaml:"name,omitempty"`
	Scopes []ScopeReport `yaml:"scopes"`
}

// ScopeReport lists the bindings of one scope path.
type ScopeReport struct {
	Path     string          `yaml:"path"`
	Bindings []BindingReport `yaml:"bindings"`
}

// BindingReport is one compiled binding.
type BindingReport struct {
	Key          string   `yaml:"key"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Location     string   `yaml:"location,omitempty"`
}

// NewReport collects every binding of the injector's tree, generated
// bindings included.
func NewReport(name string, inj *trellis.Injector) *Report {
	r := &Report{Name: name}

	var current *ScopeReport

	for _, info := range trellis.Query(inj, trellis.BindingQuery{}) {
		if info.Key == trellis.InjectorKey {
			continue
		}

		path := info.ScopePath()
		if current == nil || current.Path != path {
			r.Scopes = append(r.Scopes, ScopeReport{Path: path})
			current = &r.Scopes[len(r.Scopes)-1]
		}

		var deps []string
		for _, d := range info.Dependencies {
			deps = append(deps, d.String())
		}

		b := BindingReport{Key: info.Key.String(), Dependencies: deps}
		if info.Location != nil {
			b.Location = info.Location.String()
		}

		current.Bindings = append(current.Bindings, b)
	}

	return r
}

// WriteText renders the report as an indented listing.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder

	if r.Name != "" {
		fmt.Fprintf(&sb, "%s\n", r.Name)
	}

	for _, s := range r.Scopes {
		fmt.Fprintf(&sb, "scope %s\n", s.Path)

		for _, b := range s.Bindings {
			fmt.Fprintf(&sb, "\t%s [%s]", b.Key, strings.Join(b.Dependencies, ", "))

			if b.Location != "" {
				fmt.Fprintf(&sb, " %s", b.Location)
			}

			sb.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// WriteYAML renders the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return err
	}

	return enc.Close()
}
