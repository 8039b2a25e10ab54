package scenefile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// File is a set of parsed scene definitions keyed by scene name.
type File struct {
	scenes map[string]*hclScene
	order  []string
}

// Parse decodes HCL source. filename is used in diagnostics only.
func Parse(filename string, src []byte) (*File, error) {
	return parseWith(hclparse.NewParser(), filename, src)
}

// LoadFile reads and parses the scene file at path.
func LoadFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenefile: read %s: %w", path, err)
	}
	return Parse(path, src)
}

// LoadDir parses every .hcl file directly under dir, in name order. Scene
// names must be unique across files.
func LoadDir(dir string) (*File, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, fmt.Errorf("scenefile: list %s: %w", dir, err)
	}
	sort.Strings(matches)

	parser := hclparse.NewParser()
	merged := &File{scenes: map[string]*hclScene{}}
	for _, path := range matches {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("scenefile: read %s: %w", path, err)
		}
		file, err := parseWith(parser, path, src)
		if err != nil {
			return nil, err
		}
		for _, name := range file.order {
			if prev, exists := merged.scenes[name]; exists {
				return nil, fmt.Errorf("scenefile: duplicate scene %q in %s, first defined at %s", name, path, subject(prev.Body))
			}
			merged.scenes[name] = file.scenes[name]
			merged.order = append(merged.order, name)
		}
	}
	return merged, nil
}

func parseWith(parser *hclparse.Parser, filename string, src []byte) (*File, error) {
	body, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("scenefile: parse %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(body.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("scenefile: decode %s: %w", filename, diags)
	}

	file := &File{scenes: map[string]*hclScene{}}
	for _, scene := range parsed.Scenes {
		if _, exists := file.scenes[scene.Name]; exists {
			return nil, fmt.Errorf("scenefile: %w", hcl.Diagnostics{&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"scene\" block",
				Detail:   fmt.Sprintf("Scene %q is already defined.", scene.Name),
				Subject:  subject(scene.Body),
			}})
		}
		if diags := validateScene(scene); diags.HasErrors() {
			return nil, fmt.Errorf("scenefile: %w", diags)
		}
		file.scenes[scene.Name] = scene
		file.order = append(file.order, scene.Name)
	}
	return file, nil
}

// Names lists the scenes in definition order.
func (f *File) Names() []string {
	return append([]string(nil), f.order...)
}

func validateScene(scene *hclScene) hcl.Diagnostics {
	var diags hcl.Diagnostics
	seen := map[string]bool{}
	for _, v := range scene.Variables {
		if seen[v.Name] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"variable\" block",
				Detail:   fmt.Sprintf("Variable %q is already defined in scene %q.", v.Name, scene.Name),
				Subject:  subject(v.Body),
			})
		}
		seen[v.Name] = true

		if _, ok := builders[strings.ToLower(v.Type)]; !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported variable type",
				Detail:   fmt.Sprintf("Variable %q has type %q; expected one of %s.", v.Name, v.Type, strings.Join(builderNames(), ", ")),
				Subject:  subject(v.Body),
			})
		}
	}
	return diags
}
