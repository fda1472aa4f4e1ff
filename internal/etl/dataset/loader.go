package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/etl/spec"
)

// jsonLinesMaxTokenSize bounds a single json_lines record; some book dumps
// carry very long description fields.
const jsonLinesMaxTokenSize = 16 * 1024 * 1024

// Load reads one source file into a Set. Relative paths resolve against
// baseDir. sampleN > 0 caps the number of rows read.
func Load(source spec.Source, baseDir string, sampleN int) (*Set, error) {
	path := source.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", source.Alias, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip source %q: %w", source.Alias, err)
		}
		defer gz.Close()
		reader = gz
	}

	switch source.Format {
	case "csv":
		return loadCSV(source, reader, sampleN)
	case "json_lines":
		return loadJSONLines(source, reader, sampleN)
	default:
		return nil, fmt.Errorf("source %q: unsupported format %q", source.Alias, source.Format)
	}
}

func loadCSV(source spec.Source, reader io.Reader, sampleN int) (*Set, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewSet(source.Alias, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header for %q: %w", source.Alias, err)
	}
	columns := renameColumns(header, source.ColumnsToRename)

	set := NewSet(source.Alias, columns)
	for {
		if sampleN > 0 && len(set.Rows) >= sampleN {
			break
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row for %q: %w", source.Alias, err)
		}
		record := make(Record, len(columns))
		for i, col := range columns {
			if i < len(row) && row[i] != "" {
				record[col] = row[i]
			} else {
				record[col] = nil
			}
		}
		set.Rows = append(set.Rows, record)
	}
	return set, nil
}

func loadJSONLines(source spec.Source, reader io.Reader, sampleN int) (*Set, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), jsonLinesMaxTokenSize)

	set := NewSet(source.Alias, nil)
	seen := map[string]bool{}
	for scanner.Scan() {
		if sampleN > 0 && len(set.Rows) >= sampleN {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		raw := map[string]any{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("parse json_lines row %d for %q: %w", len(set.Rows)+1, source.Alias, err)
		}
		record := make(Record, len(raw))
		for key, value := range raw {
			name := key
			if renamed, ok := source.ColumnsToRename[key]; ok && strings.TrimSpace(renamed) != "" {
				name = renamed
			}
			record[name] = value
			if !seen[name] {
				seen[name] = true
				set.Columns = append(set.Columns, name)
			}
		}
		set.Rows = append(set.Rows, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read json_lines for %q: %w", source.Alias, err)
	}
	return set, nil
}

// LoadAll loads every declared source keyed by alias.
func LoadAll(sources []spec.Source, baseDir string, sampleN int) (map[string]*Set, error) {
	sets := make(map[string]*Set, len(sources))
	for _, source := range sources {
		set, err := Load(source, baseDir, sampleN)
		if err != nil {
			return nil, err
		}
		sets[source.Alias] = set
	}
	return sets, nil
}
