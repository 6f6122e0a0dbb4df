/*
yaml.go - Rule catalog files

PURPOSE:
  Dispatch admins maintain the rule tables as YAML rather than through a
  database console. A catalog directory holds one or more *.yaml files;
  each contributes attachment rules, drop rules and row schemas, and the
  files are merged in name order (later files can override a pair or row
  by restating it).

FILE FORMAT:
  attachmentRules:
    - source: operator
      target: excavator
      canAttach: true
      maxCount: 1
      required: true
  dropRules:
    - row: equipment
      allowed: [excavator, paver]
  rowSchemas:
    - job: paving
      rows: [foreman, equipment, crew, trucks]

VALIDATION:
  Structural only - ids must be non-empty and counts non-negative. The
  engine treats unknown type names as "never matches", so a typo shows up
  as a rule that is silently never hit; keep catalogs under review.

SEE ALSO:
  - catalog.go: Default rule set used when no directory is configured
*/
package construction

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/dispatch-engine/engine"
)

// ParseCatalogYAML decodes and validates one catalog payload.
func ParseCatalogYAML(data []byte) (engine.CatalogSpec, error) {
	var spec engine.CatalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return engine.CatalogSpec{}, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := validateSpec(spec); err != nil {
		return engine.CatalogSpec{}, err
	}
	return spec, nil
}

// LoadCatalogFile reads one YAML catalog file.
func LoadCatalogFile(path string) (engine.CatalogSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.CatalogSpec{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	spec, err := ParseCatalogYAML(data)
	if err != nil {
		return engine.CatalogSpec{}, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return spec, nil
}

// LoadCatalogDir merges every *.yaml file in dir, in name order, on top of
// the given base spec. A missing directory returns the base unchanged.
func LoadCatalogDir(dir string, base engine.CatalogSpec) (engine.CatalogSpec, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return base, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return engine.CatalogSpec{}, fmt.Errorf("catalog: read %s: %w", trimmed, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	merged := base
	for _, name := range names {
		spec, err := LoadCatalogFile(filepath.Join(trimmed, name))
		if err != nil {
			return engine.CatalogSpec{}, err
		}
		merged = Merge(merged, spec)
	}
	return merged, nil
}

// Merge appends overlay rules after base ones. engine.NewCatalog gives
// later duplicates precedence, so an overlay restating a pair or row
// replaces the base entry.
func Merge(base, overlay engine.CatalogSpec) engine.CatalogSpec {
	return engine.CatalogSpec{
		AttachmentRules: append(append([]engine.AttachmentRule{}, base.AttachmentRules...), overlay.AttachmentRules...),
		DropRules:       append(append([]engine.DropRule{}, base.DropRules...), overlay.DropRules...),
		RowSchemas:      append(append([]engine.RowSchema{}, base.RowSchemas...), overlay.RowSchemas...),
	}
}

func validateSpec(spec engine.CatalogSpec) error {
	for i, r := range spec.AttachmentRules {
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("catalog: attachmentRules[%d]: source and target are required", i)
		}
		if r.MaxCount < 0 {
			return fmt.Errorf("catalog: attachmentRules[%d]: maxCount must be >= 0", i)
		}
	}
	for i, d := range spec.DropRules {
		if d.Row == "" {
			return fmt.Errorf("catalog: dropRules[%d]: row is required", i)
		}
	}
	for i, s := range spec.RowSchemas {
		if s.Job == "" {
			return fmt.Errorf("catalog: rowSchemas[%d]: job is required", i)
		}
	}
	return nil
}
