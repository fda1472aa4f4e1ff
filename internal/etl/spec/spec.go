package spec

import (
	"encoding/json"
	"fmt"
	"os"
)

// Mapping is the root of the ETL mapping configuration.
type Mapping struct {
	GlobalSettings GlobalSettings `json:"global_settings"`
	Sources        []Source       `json:"sources"`
	Joins          []Join         `json:"joins"`
	Targets        []Target       `json:"targets"`
}

// GlobalSettings carries run-wide knobs.
type GlobalSettings struct {
	// SampleNRows caps rows read per source; 0 reads everything.
	SampleNRows int `json:"sample_n_rows"`
}

// Source declares how to load one raw record stream.
type Source struct {
	Alias           string            `json:"alias"`
	Path            string            `json:"path"`
	Format          string            `json:"format"`
	ColumnsToRename map[string]string `json:"columns_to_rename"`
}

// Join combines two record sets on key columns.
type Join struct {
	ResultAlias string   `json:"result_alias"`
	LeftAlias   string   `json:"left_df_alias"`
	RightAlias  string   `json:"right_df_alias"`
	LeftOn      string   `json:"left_on"`
	RightOn     string   `json:"right_on"`
	How         string   `json:"how"`
	Suffixes    []string `json:"suffixes"`
}

// Target maps one record set onto one output collection.
type Target struct {
	CollectionName    string      `json:"collection_name"`
	SourceAlias       string      `json:"source_dataframe_alias"`
	WriteMode         string      `json:"write_mode"`
	UpsertKeyFields   []string    `json:"upsert_key_fields"`
	BatchSize         int         `json:"batch_size"`
	DocumentStructure []FieldRule `json:"document_structure"`
	Indexes           []IndexSpec `json:"indexes"`
}

// FieldRule produces exactly one target document field.
type FieldRule struct {
	SourceColumn  string          `json:"source_column"`
	SourceColumns []string        `json:"source_columns"`
	Value         any             `json:"value"`
	TargetField   string          `json:"target_field"`
	Type          string          `json:"type"`
	Transform     string          `json:"transform"`
	DefaultValue  any             `json:"default_value"`
	ObjectMapping []ObjectKeyRule `json:"object_mapping"`
	IsPrimaryKey  bool            `json:"is_primary_key"`
}

// ObjectKeyRule maps one key inside a list-of-objects transform.
type ObjectKeyRule struct {
	SourceKey    string `json:"source_key"`
	TargetKey    string `json:"target_key"`
	Type         string `json:"type"`
	DefaultValue any    `json:"default_value"`
}

// IndexSpec declares one index on the target collection.
type IndexSpec struct {
	Field  string `json:"field"`
	Unique bool   `json:"unique"`
}

// Load reads, parses, and validates a mapping configuration file.
func Load(path string) (*Mapping, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping config: %w", err)
	}
	var mapping Mapping
	if err := json.Unmarshal(body, &mapping); err != nil {
		return nil, fmt.Errorf("%w: parse mapping config: %v", ErrInvalid, err)
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// PrimaryKey returns the primary-key field rule of the target, if declared.
func (t *Target) PrimaryKey() *FieldRule {
	for i := range t.DocumentStructure {
		if t.DocumentStructure[i].IsPrimaryKey {
			return &t.DocumentStructure[i]
		}
	}
	return nil
}
