// Package mapper shapes raw records into output document fields.
//
// A mapper is compiled once per target from its document_structure: every
// field rule becomes a closed function over the input record, so mapping a
// row is a straight loop with no per-row dispatch on the config. Values run
// through the coercion rules in package coerce; a field whose source is
// missing or unparsable lands on its declared default (or null).
package mapper

import (
	"fmt"
	"time"

	"bindery/internal/etl/coerce"
	"bindery/internal/etl/dataset"
	"bindery/internal/etl/spec"
)

// Stats summarizes one mapping pass over a record set.
type Stats struct {
	Mapped    int
	Skipped   int // rows dropped for a null primary key
	Fallbacks int // field values substituted with their default
}

// ruleFunc produces one field value from a record. The boolean reports
// whether the raw source value was used; false means the default stood in.
type ruleFunc func(row dataset.Record) (any, bool)

// Mapper maps records of one source alias onto one target's document shape.
type Mapper struct {
	fields   []string
	rules    []ruleFunc
	primary  string
	now      time.Time
}

// New compiles the target's field rules. The now value feeds every
// current_timestamp rule so all documents of a run share one timestamp.
func New(target spec.Target, now time.Time) (*Mapper, error) {
	m := &Mapper{now: now.UTC()}
	if pk := target.PrimaryKey(); pk != nil {
		m.primary = pk.TargetField
	}
	for _, rule := range target.DocumentStructure {
		fn, err := m.compile(rule)
		if err != nil {
			return nil, fmt.Errorf("target %q field %q: %w", target.CollectionName, rule.TargetField, err)
		}
		m.fields = append(m.fields, rule.TargetField)
		m.rules = append(m.rules, fn)
	}
	return m, nil
}

func (m *Mapper) compile(rule spec.FieldRule) (ruleFunc, error) {
	switch {
	case rule.Transform == "current_timestamp":
		now := m.now
		return func(dataset.Record) (any, bool) { return now, true }, nil

	case rule.Transform == "combine_date_parts":
		if len(rule.SourceColumns) != 3 {
			return nil, fmt.Errorf("combine_date_parts needs exactly 3 source_columns, got %d", len(rule.SourceColumns))
		}
		yearCol, monthCol, dayCol := rule.SourceColumns[0], rule.SourceColumns[1], rule.SourceColumns[2]
		def := rule.DefaultValue
		return func(row dataset.Record) (any, bool) {
			return coerce.CombineDateParts(row[yearCol], row[monthCol], row[dayCol], def)
		}, nil

	case rule.Transform != "":
		return nil, fmt.Errorf("unknown transform %q", rule.Transform)

	case rule.Value != nil:
		value := rule.Value
		if rule.Type != "" {
			coerced, _ := coerce.Value(value, rule.Type, rule.DefaultValue)
			value = coerced
		}
		return func(dataset.Record) (any, bool) { return value, true }, nil

	case rule.Type == "list_of_objects":
		col := rule.SourceColumn
		keys := rule.ObjectMapping
		def := rule.DefaultValue
		return func(row dataset.Record) (any, bool) {
			return mapObjectList(row[col], keys, def)
		}, nil

	default:
		col := rule.SourceColumn
		typ := rule.Type
		def := rule.DefaultValue
		return func(row dataset.Record) (any, bool) {
			return coerce.Value(row[col], typ, def)
		}, nil
	}
}

// mapObjectList reshapes a list of raw objects through the per-key rules.
// Elements that are not objects are dropped.
func mapObjectList(raw any, keys []spec.ObjectKeyRule, def any) (any, bool) {
	items, ok := raw.([]any)
	if !ok {
		return def, false
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mapped := make(map[string]any, len(keys))
		for _, key := range keys {
			value, _ := coerce.Value(obj[key.SourceKey], key.Type, key.DefaultValue)
			mapped[key.TargetKey] = value
		}
		out = append(out, mapped)
	}
	return out, true
}

// Map builds the document fields for one record. The ok result is false when
// the record has no usable primary key and must be skipped.
func (m *Mapper) Map(row dataset.Record) (fields map[string]any, fallbacks int, ok bool) {
	fields = make(map[string]any, len(m.fields))
	for i, fn := range m.rules {
		value, usedRaw := fn(row)
		if !usedRaw {
			fallbacks++
		}
		fields[m.fields[i]] = value
	}
	if m.primary != "" && fields[m.primary] == nil {
		return nil, fallbacks, false
	}
	return fields, fallbacks, true
}

// MapSet maps every record of the set, dropping rows without a primary key.
func (m *Mapper) MapSet(set *dataset.Set) ([]map[string]any, Stats) {
	var stats Stats
	docs := make([]map[string]any, 0, set.Len())
	for _, row := range set.Rows {
		fields, fallbacks, ok := m.Map(row)
		stats.Fallbacks += fallbacks
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Mapped++
		docs = append(docs, fields)
	}
	return docs, stats
}
