// Package build orders pipeline stages from a YAML manifest and reruns
// only the ones whose outputs are missing or older than their inputs.
package build

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pipeline.yaml
var defaultManifest []byte

// Target is one stage invocation with its file dependencies
type Target struct {
	Name    string            `yaml:"name"`
	Stage   string            `yaml:"stage"`
	Inputs  []string          `yaml:"inputs"`
	Outputs []string          `yaml:"outputs"`
	Args    map[string]string `yaml:"args"`
}

// Manifest is the ordered list of targets
type Manifest struct {
	Targets []Target `yaml:"targets"`
}

// Parse decodes and validates a manifest
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Default returns the built-in pipeline
func Default() *Manifest {
	m, err := Parse(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("embedded pipeline.yaml: %v", err))
	}
	return m
}

// Load reads a manifest from path, or the default when path is empty
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

func (m *Manifest) validate() error {
	if len(m.Targets) == 0 {
		return fmt.Errorf("manifest has no targets")
	}
	seen := make(map[string]bool)
	for i, t := range m.Targets {
		if t.Name == "" {
			return fmt.Errorf("target %d has no name", i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		if t.Stage == "" {
			return fmt.Errorf("target %q has no stage", t.Name)
		}
		if len(t.Outputs) == 0 {
			return fmt.Errorf("target %q has no outputs", t.Name)
		}
	}
	return nil
}

// Expand replaces {key} placeholders in every path and argument
func (m *Manifest) Expand(vars map[string]string) *Manifest {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", strings.TrimRight(v, "/"))
	}
	r := strings.NewReplacer(pairs...)

	out := &Manifest{Targets: make([]Target, len(m.Targets))}
	for i, t := range m.Targets {
		nt := Target{Name: t.Name, Stage: t.Stage}
		for _, in := range t.Inputs {
			nt.Inputs = append(nt.Inputs, r.Replace(in))
		}
		for _, o := range t.Outputs {
			nt.Outputs = append(nt.Outputs, r.Replace(o))
		}
		if t.Args != nil {
			nt.Args = make(map[string]string, len(t.Args))
			for k, v := range t.Args {
				nt.Args[k] = r.Replace(v)
			}
		}
		out.Targets[i] = nt
	}
	return out
}

// Target returns the named target
func (m *Manifest) Target(name string) (Target, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Select returns the named targets plus every target that produces one of
// their inputs, in manifest order. No names selects everything.
func (m *Manifest) Select(names ...string) ([]Target, error) {
	if len(names) == 0 {
		return m.Targets, nil
	}

	producer := make(map[string]int)
	for i, t := range m.Targets {
		for _, o := range t.Outputs {
			producer[o] = i
		}
	}

	want := make(map[int]bool)
	var visit func(i int)
	visit = func(i int) {
		if want[i] {
			return
		}
		want[i] = true
		for _, in := range m.Targets[i].Inputs {
			if p, ok := producer[in]; ok {
				visit(p)
			}
		}
	}

	for _, name := range names {
		found := false
		for i, t := range m.Targets {
			if t.Name == name {
				visit(i)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown target %q", name)
		}
	}

	var out []Target
	for i, t := range m.Targets {
		if want[i] {
			out = append(out, t)
		}
	}
	return out, nil
}
