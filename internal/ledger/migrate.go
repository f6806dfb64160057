package ledger

import (
	"bytes"
	"encoding/json"
	"sort"
)

var legacyPrefix = []byte(`{"breakfast":[],"lunch":[],"dinner":[],"other":`)

// Migrate rewrites every day stored as a bare entry array into the
// categorized shape, placing the entries under "other". Values that are
// not arrays pass through untouched, so applying Migrate to its own output
// changes nothing. It returns a new map and the sorted keys it rewrote.
func Migrate(raw map[string]json.RawMessage) (map[string]json.RawMessage, []string) {
	out := make(map[string]json.RawMessage, len(raw))
	var rewritten []string
	for k, v := range raw {
		if !isArray(v) {
			out[k] = v
			continue
		}
		wrapped := make([]byte, 0, len(legacyPrefix)+len(v)+1)
		wrapped = append(wrapped, legacyPrefix...)
		wrapped = append(wrapped, bytes.TrimSpace(v)...)
		wrapped = append(wrapped, '}')
		out[k] = wrapped
		rewritten = append(rewritten, k)
	}
	sort.Strings(rewritten)
	return out, rewritten
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}
