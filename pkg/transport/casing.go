package transport

import (
	"encoding/json"
	"strings"

	"github.com/iancoleman/strcase"
)

// SnakeKeys rewrites every object key in a JSON document from camelCase to
// snake_case. Runs of capitals are one word, so chainID becomes chain_id.
// Values are left untouched.
func SnakeKeys(raw json.RawMessage) (json.RawMessage, error) {
	return rewriteKeys(raw, strcase.ToSnake)
}

// CamelKeys is the inverse of SnakeKeys.
func CamelKeys(raw json.RawMessage) (json.RawMessage, error) {
	return rewriteKeys(raw, strcase.ToLowerCamel)
}

func rewriteKeys(raw json.RawMessage, rename func(string) string) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(renameKeys(v, rename))
}

func renameKeys(v interface{}, rename func(string) string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[rename(k)] = renameKeys(inner, rename)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = renameKeys(inner, rename)
		}
		return out
	default:
		return v
	}
}
