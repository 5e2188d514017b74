// Package seed loads YAML files declaring categories and their form
// configurations and applies them to the stores.
package seed

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/reportal/model"
)

// File is one parsed seed file.
type File struct {
	Categories []Category `yaml:"categories"`

	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// Category declares a category with optional children or a form.
type Category struct {
	ID       string     `yaml:"id"`
	Title    string     `yaml:"title"`
	Children []Category `yaml:"children"`
	Form     *Form      `yaml:"form"`
}

// Form declares the configuration of a leaf page.
type Form struct {
	Frequency model.Frequency `yaml:"frequency"`
	Regions   []string        `yaml:"regions"`
	Divisions []string        `yaml:"divisions"`
	Offices   []string        `yaml:"offices"`
	Fields    []Field         `yaml:"fields"`
}

// Field declares one form field.
type Field struct {
	ID           string          `yaml:"id"`
	Kind         model.FieldKind `yaml:"kind"`
	Label        string          `yaml:"label"`
	Placeholder  string          `yaml:"placeholder"`
	Required     bool            `yaml:"required"`
	Options      []Option        `yaml:"options"`
	Default      any             `yaml:"default"`
	Min          *float64        `yaml:"min"`
	Max          *float64        `yaml:"max"`
	ButtonText   string          `yaml:"buttonText"`
	SectionTitle string          `yaml:"sectionTitle"`
	ReadOnly     bool            `yaml:"readOnly"`
}

// Option is a field choice. A bare string is used as both label and value.
type Option struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// UnmarshalYAML accepts either a mapping or a scalar.
func (o *Option) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		o.Label, o.Value = n.Value, n.Value
		return nil
	}
	type plain Option
	return n.Decode((*plain)(o))
}

// Loader scans directories for YAML seed files, parses them, and computes
// SHA-256 checksums.
type Loader struct{}

// NewLoader creates a new seed Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files. Files
// are returned in path order.
func (l *Loader) LoadAll(directories []string) ([]File, error) {
	var files []File

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			f, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].SourceFile < files[j].SourceFile })
	return files, nil
}

// LoadFile loads and parses a single seed file. It computes the SHA-256
// checksum and records the source file path.
func (l *Loader) LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	f.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	f.SourceFile = path

	return f, nil
}

// Configuration converts the form declared for a category.
func (c Category) Configuration() model.FormConfiguration {
	cfg := model.FormConfiguration{
		ID:     c.ID,
		Title:  c.Title,
		Fields: make([]model.FieldDefinition, 0, len(c.Form.Fields)),
		Scope: model.Scope{
			SelectedRegions:   orEmpty(c.Form.Regions),
			SelectedDivisions: orEmpty(c.Form.Divisions),
			SelectedOffices:   orEmpty(c.Form.Offices),
			SelectedFrequency: c.Form.Frequency,
		},
	}
	for _, f := range c.Form.Fields {
		fd := model.FieldDefinition{
			ID:           f.ID,
			Kind:         f.Kind,
			Label:        f.Label,
			Placeholder:  f.Placeholder,
			Required:     f.Required,
			DefaultValue: f.Default,
			Min:          f.Min,
			Max:          f.Max,
			ButtonText:   f.ButtonText,
			SectionTitle: f.SectionTitle,
			ReadOnly:     f.ReadOnly,
		}
		for _, o := range f.Options {
			fd.Options = append(fd.Options, model.Option{Label: o.Label, Value: o.Value})
		}
		cfg.Fields = append(cfg.Fields, fd)
	}
	return cfg
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
