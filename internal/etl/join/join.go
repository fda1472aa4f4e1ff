// Package join combines record sets on key columns.
//
// Joins follow dataframe merge semantics: a hash lookup is built from the
// right set, left rows expand into one output row per matching right row
// (cartesian within a key group), and a left join keeps unmatched left rows
// with null right-side fields. Colliding column names take the configured
// suffixes; when both sides join on the same column name the key appears once,
// carrying the left value.
package join

import (
	"fmt"
	"strconv"
	"strings"

	"bindery/internal/etl/dataset"
	"bindery/internal/etl/spec"
)

var defaultSuffixes = [2]string{"_x", "_y"}

// Execute runs one join and returns the combined set.
func Execute(left, right *dataset.Set, js spec.Join) (*dataset.Set, error) {
	rightOn := js.RightOn
	if strings.TrimSpace(rightOn) == "" {
		rightOn = js.LeftOn
	}
	if !left.HasColumn(js.LeftOn) {
		return nil, fmt.Errorf("join %q: key %q not found in left set %q", js.ResultAlias, js.LeftOn, left.Alias)
	}
	if !right.HasColumn(rightOn) {
		return nil, fmt.Errorf("join %q: key %q not found in right set %q", js.ResultAlias, rightOn, right.Alias)
	}

	suffixes := defaultSuffixes
	if len(js.Suffixes) == 2 {
		suffixes = [2]string{js.Suffixes[0], js.Suffixes[1]}
	}

	sharedKey := js.LeftOn == rightOn
	leftNames, rightNames := resolveColumns(left.Columns, right.Columns, rightOn, sharedKey, suffixes)

	columns := make([]string, 0, len(left.Columns)+len(right.Columns))
	for _, col := range left.Columns {
		columns = append(columns, leftNames[col])
	}
	for _, col := range right.Columns {
		if sharedKey && col == rightOn {
			continue
		}
		columns = append(columns, rightNames[col])
	}

	lookup := make(map[string][]dataset.Record, right.Len())
	for _, row := range right.Rows {
		key, ok := keyString(row[rightOn])
		if !ok {
			continue
		}
		lookup[key] = append(lookup[key], row)
	}

	result := dataset.NewSet(js.ResultAlias, columns)
	for _, leftRow := range left.Rows {
		var matches []dataset.Record
		if key, ok := keyString(leftRow[js.LeftOn]); ok {
			matches = lookup[key]
		}
		if len(matches) == 0 {
			if js.How == "left" {
				result.Rows = append(result.Rows, combine(leftRow, nil, left.Columns, right.Columns, leftNames, rightNames, rightOn, sharedKey))
			}
			continue
		}
		for _, rightRow := range matches {
			result.Rows = append(result.Rows, combine(leftRow, rightRow, left.Columns, right.Columns, leftNames, rightNames, rightOn, sharedKey))
		}
	}
	return result, nil
}

// ExecuteAll runs every join in declaration order, registering each result
// under its alias for use by later joins.
func ExecuteAll(sets map[string]*dataset.Set, joins []spec.Join) error {
	for _, js := range joins {
		left, ok := sets[js.LeftAlias]
		if !ok {
			return fmt.Errorf("join %q: left set %q not loaded", js.ResultAlias, js.LeftAlias)
		}
		right, ok := sets[js.RightAlias]
		if !ok {
			return fmt.Errorf("join %q: right set %q not loaded", js.ResultAlias, js.RightAlias)
		}
		result, err := Execute(left, right, js)
		if err != nil {
			return err
		}
		sets[js.ResultAlias] = result
	}
	return nil
}

func resolveColumns(leftCols, rightCols []string, rightOn string, sharedKey bool, suffixes [2]string) (map[string]string, map[string]string) {
	rightSet := map[string]bool{}
	for _, col := range rightCols {
		if sharedKey && col == rightOn {
			continue
		}
		rightSet[col] = true
	}

	leftNames := make(map[string]string, len(leftCols))
	rightNames := make(map[string]string, len(rightCols))
	for _, col := range leftCols {
		if rightSet[col] {
			leftNames[col] = col + suffixes[0]
		} else {
			leftNames[col] = col
		}
	}
	leftSet := map[string]bool{}
	for _, col := range leftCols {
		leftSet[col] = true
	}
	for _, col := range rightCols {
		if leftSet[col] && !(sharedKey && col == rightOn) {
			rightNames[col] = col + suffixes[1]
		} else {
			rightNames[col] = col
		}
	}
	return leftNames, rightNames
}

func combine(leftRow, rightRow dataset.Record, leftCols, rightCols []string, leftNames, rightNames map[string]string, rightOn string, sharedKey bool) dataset.Record {
	out := make(dataset.Record, len(leftCols)+len(rightCols))
	for _, col := range leftCols {
		out[leftNames[col]] = leftRow[col]
	}
	for _, col := range rightCols {
		if sharedKey && col == rightOn {
			continue
		}
		if rightRow == nil {
			out[rightNames[col]] = nil
		} else {
			out[rightNames[col]] = rightRow[col]
		}
	}
	return out
}

// keyString canonicalizes a join key value; whole floats collapse onto their
// integer form so csv strings and json numbers line up.
func keyString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
