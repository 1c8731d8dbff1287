package processing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FlatField is one searchable (dotted path, formatted value) pair.
type FlatField struct {
	Path  string
	Value string
}

// FlattenVariables turns an archived variables payload into the ordered
// pair list that gets indexed. The flattening rules define what becomes
// searchable:
//
//   - nested objects extend the path with ".key"; sibling keys are
//     visited in sorted order so repeated indexing runs emit the same
//     sequence
//   - arrays extend the path with the numeric index (".0", ".1", ...)
//   - strings are indexed verbatim, numbers keep their source
//     formatting, booleans become "true"/"false", null becomes "null"
//   - empty objects and arrays contribute no pairs
//
// The payload must be a JSON object. Anything unparsable is a hard
// error: malformed archived data is unexpected and has to surface
// rather than be silently skipped.
func FlattenVariables(data []byte) ([]FlatField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("malformed variables payload: %w", err)
	}

	var fields []FlatField
	flattenObject("", root, &fields)
	return fields, nil
}

func flattenObject(prefix string, obj map[string]any, out *[]FlatField) {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		flattenValue(joinPath(prefix, key), obj[key], out)
	}
}

func flattenValue(path string, value any, out *[]FlatField) {
	switch v := value.(type) {
	case map[string]any:
		flattenObject(path, v, out)
	case []any:
		for i, elem := range v {
			flattenValue(joinPath(path, strconv.Itoa(i)), elem, out)
		}
	case string:
		*out = append(*out, FlatField{Path: path, Value: v})
	case json.Number:
		*out = append(*out, FlatField{Path: path, Value: v.String()})
	case bool:
		*out = append(*out, FlatField{Path: path, Value: strconv.FormatBool(v)})
	case nil:
		*out = append(*out, FlatField{Path: path, Value: "null"})
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
