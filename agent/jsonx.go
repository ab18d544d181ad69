package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Models wrap JSON in markdown fences despite instructions not to. The fence
// language tag, when present, is ignored.
var codeFencePattern = regexp.MustCompile("(?s)```[a-zA-Z:]*\\s*\\n?(.*?)\\n?\\s*```")

// StripCodeFences returns the content of the first fenced block, or the input
// trimmed when no fence is present.
func StripCodeFences(s string) string {
	if m := codeFencePattern.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// RobustlyParseJSONArray coerces model output into a JSON array. Models
// inconsistently wrap arrays in envelope objects despite schema instructions,
// so after fence stripping the parsed value is handled by shape: an array is
// returned as-is; an object is searched for its first array-typed value; a
// single plan-shaped object is wrapped into a singleton array. Anything else
// is a ParseError carrying a truncated excerpt for diagnostics.
func RobustlyParseJSONArray(content string) ([]map[string]interface{}, error) {
	stripped := StripCodeFences(content)

	var parsed interface{}
	if err := json.Unmarshal([]byte(stripped), &parsed); err != nil {
		return nil, &ParseError{Excerpt: truncateForDiagnostics(stripped, 300), Err: err}
	}

	switch v := parsed.(type) {
	case []interface{}:
		return toObjectSlice(v, stripped)
	case map[string]interface{}:
		// Envelope object: take the first array-typed value. Key order of a
		// decoded map is not deterministic, so probe well-known envelope keys
		// first.
		for _, key := range []string{"plans", "actions", "items", "results", "data"} {
			if arr, ok := v[key].([]interface{}); ok {
				return toObjectSlice(arr, stripped)
			}
		}
		for _, value := range v {
			if arr, ok := value.([]interface{}); ok {
				return toObjectSlice(arr, stripped)
			}
		}
		// A single plan-shaped object: wrap it.
		if _, ok := v["chartType"]; ok {
			return []map[string]interface{}{v}, nil
		}
		return nil, &ParseError{
			Excerpt: truncateForDiagnostics(stripped, 300),
			Err:     errNoArrayValue,
		}
	default:
		return nil, &ParseError{
			Excerpt: truncateForDiagnostics(stripped, 300),
			Err:     errNotArrayOrObject,
		}
	}
}

func toObjectSlice(arr []interface{}, source string) ([]map[string]interface{}, error) {
	result := make([]map[string]interface{}, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ParseError{
				Excerpt: truncateForDiagnostics(source, 300),
				Err:     errArrayOfNonObjects,
			}
		}
		result = append(result, obj)
	}
	return result, nil
}

// ParseJSONObject coerces model output into a single JSON object after fence
// stripping.
func ParseJSONObject(content string) (map[string]interface{}, error) {
	stripped := StripCodeFences(content)
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(stripped), &obj); err != nil {
		return nil, &ParseError{Excerpt: truncateForDiagnostics(stripped, 300), Err: err}
	}
	return obj, nil
}

var (
	errNoArrayValue      = errString("object contains no array-typed value")
	errNotArrayOrObject  = errString("value is neither an array nor an object")
	errArrayOfNonObjects = errString("array contains non-object elements")
)

type errString string

func (e errString) Error() string { return string(e) }
