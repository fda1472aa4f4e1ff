package spec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks a malformed mapping configuration. Validation failures are
// fatal: the run aborts before any write.
var ErrInvalid = errors.New("invalid mapping config")

var knownTypes = map[string]bool{
	"":                true, // defaults to string
	"string":          true,
	"integer":         true,
	"float":           true,
	"boolean":         true,
	"date":            true,
	"list_of_strings": true,
	"list_of_objects": true,
	"passthrough":     true,
}

var knownTransforms = map[string]bool{
	"combine_date_parts": true,
	"current_timestamp":  true,
}

var knownFormats = map[string]bool{
	"csv":        true,
	"json_lines": true,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks structural consistency of the whole mapping.
func (m *Mapping) Validate() error {
	if len(m.Targets) == 0 {
		return invalid("at least one target is required")
	}

	aliases := map[string]bool{}
	for i, src := range m.Sources {
		if strings.TrimSpace(src.Alias) == "" {
			return invalid("sources[%d]: alias is required", i)
		}
		if aliases[src.Alias] {
			return invalid("duplicate alias %q", src.Alias)
		}
		if strings.TrimSpace(src.Path) == "" {
			return invalid("source %q: path is required", src.Alias)
		}
		if !knownFormats[src.Format] {
			return invalid("source %q: unsupported format %q", src.Alias, src.Format)
		}
		aliases[src.Alias] = true
	}

	for i, join := range m.Joins {
		if strings.TrimSpace(join.ResultAlias) == "" {
			return invalid("joins[%d]: result_alias is required", i)
		}
		if aliases[join.ResultAlias] {
			return invalid("join %q: result alias already defined", join.ResultAlias)
		}
		if !aliases[join.LeftAlias] {
			return invalid("join %q: left alias %q is not defined yet", join.ResultAlias, join.LeftAlias)
		}
		if !aliases[join.RightAlias] {
			return invalid("join %q: right alias %q is not defined yet", join.ResultAlias, join.RightAlias)
		}
		if strings.TrimSpace(join.LeftOn) == "" {
			return invalid("join %q: left_on is required", join.ResultAlias)
		}
		switch join.How {
		case "left", "inner":
		default:
			return invalid("join %q: how must be left or inner, got %q", join.ResultAlias, join.How)
		}
		if len(join.Suffixes) != 0 && len(join.Suffixes) != 2 {
			return invalid("join %q: suffixes must hold exactly two entries", join.ResultAlias)
		}
		aliases[join.ResultAlias] = true
	}

	for _, target := range m.Targets {
		if err := target.validate(aliases); err != nil {
			return err
		}
	}
	return nil
}

func (t *Target) validate(aliases map[string]bool) error {
	if strings.TrimSpace(t.CollectionName) == "" {
		return invalid("target: collection_name is required")
	}
	if !aliases[t.SourceAlias] {
		return invalid("target %q: source alias %q is not defined", t.CollectionName, t.SourceAlias)
	}
	switch t.WriteMode {
	case "insert", "upsert":
	default:
		return invalid("target %q: write_mode must be insert or upsert, got %q", t.CollectionName, t.WriteMode)
	}
	if t.WriteMode == "upsert" && len(t.UpsertKeyFields) == 0 {
		return invalid("target %q: upsert mode requires upsert_key_fields", t.CollectionName)
	}
	if t.BatchSize < 0 {
		return invalid("target %q: batch_size must not be negative", t.CollectionName)
	}
	if len(t.DocumentStructure) == 0 {
		return invalid("target %q: document_structure is required", t.CollectionName)
	}

	fields := map[string]bool{}
	primaryKeys := 0
	for _, rule := range t.DocumentStructure {
		if strings.TrimSpace(rule.TargetField) == "" {
			return invalid("target %q: every rule needs target_field", t.CollectionName)
		}
		if fields[rule.TargetField] {
			return invalid("target %q: field %q produced by more than one rule", t.CollectionName, rule.TargetField)
		}
		fields[rule.TargetField] = true
		if rule.IsPrimaryKey {
			primaryKeys++
		}
		if !knownTypes[rule.Type] {
			return invalid("target %q field %q: unknown type %q", t.CollectionName, rule.TargetField, rule.Type)
		}
		if rule.Transform != "" && !knownTransforms[rule.Transform] {
			return invalid("target %q field %q: unknown transform %q", t.CollectionName, rule.TargetField, rule.Transform)
		}
		if rule.Transform == "combine_date_parts" && len(rule.SourceColumns) != 3 {
			return invalid("target %q field %q: combine_date_parts needs three source_columns", t.CollectionName, rule.TargetField)
		}
		if rule.Type == "list_of_objects" && len(rule.ObjectMapping) == 0 {
			return invalid("target %q field %q: list_of_objects needs object_mapping", t.CollectionName, rule.TargetField)
		}
	}
	if primaryKeys > 1 {
		return invalid("target %q: at most one primary key mapping is allowed", t.CollectionName)
	}
	for _, key := range t.UpsertKeyFields {
		if !fields[key] {
			return invalid("target %q: upsert key field %q has no producing rule", t.CollectionName, key)
		}
	}
	return nil
}
