package config

import (
	"fmt"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/reconcile"
	"gopkg.in/yaml.v3"
)

// PackageEntry is one declared package or gem. It can be written as a string
// ("vim", "nginx=1.24.0-1", "rails:7.1.3"), as a [name, version] pair or as a
// mapping with an optional when condition.
type PackageEntry struct {
	Name    string `yaml:"name" toml:"name" validate:"required"`
	Version string `yaml:"version" toml:"version"`
	When    string `yaml:"when" toml:"when"`
}

// parseEntry accepts apt style "name=version" and gem style "name:version".
func parseEntry(s string) PackageEntry {
	var spec reconcile.PackageSpec
	if strings.Contains(s, "=") {
		spec = reconcile.ParsePackageSpec(s)
	} else if specs := reconcile.ParseGemSpecs([]string{s}); len(specs) > 0 {
		spec = specs[0]
	}
	return PackageEntry{Name: strings.TrimSpace(spec.Name), Version: strings.TrimSpace(spec.Version)}
}

func entryFromPair(items []string) (PackageEntry, error) {
	if len(items) == 0 || len(items) > 2 {
		return PackageEntry{}, fmt.Errorf("package pair must be [name] or [name, version], got %d items", len(items))
	}
	e := PackageEntry{Name: items[0]}
	if len(items) == 2 {
		e.Version = items[1]
	}
	return e, nil
}

func (e *PackageEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*e = parseEntry(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		entry, err := entryFromPair(items)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*e = entry
		return nil
	case yaml.MappingNode:
		type plain PackageEntry
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		*e = PackageEntry(p)
		return nil
	}
	return fmt.Errorf("line %d: unsupported package entry", value.Line)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (e *PackageEntry) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*e = parseEntry(v)
		return nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("package pair items must be strings, got %T", item)
			}
			items = append(items, s)
		}
		entry, err := entryFromPair(items)
		if err != nil {
			return err
		}
		*e = entry
		return nil
	case map[string]any:
		var out PackageEntry
		for key, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("package field %q must be a string, got %T", key, raw)
			}
			switch key {
			case "name":
				out.Name = s
			case "version":
				out.Version = s
			case "when":
				out.When = s
			default:
				return fmt.Errorf("unknown package field %q", key)
			}
		}
		*e = out
		return nil
	}
	return fmt.Errorf("unsupported package entry %T", data)
}
