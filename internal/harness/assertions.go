package harness

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// assertSubset checks that every key in want exists in got with an equal
// value. Nested maps recurse; numbers compare loosely because YAML decodes
// ints where JSON round-trips produce float64.
func assertSubset(t *testing.T, label string, want map[string]any, got map[string]any) {
	t.Helper()

	for key, wantVal := range want {
		gotVal, ok := got[key]
		if !assert.True(t, ok, "%s: missing key %q", label, key) {
			continue
		}

		wantMap, wantIsMap := wantVal.(map[string]any)
		gotMap, gotIsMap := gotVal.(map[string]any)
		if wantIsMap && gotIsMap {
			assertSubset(t, fmt.Sprintf("%s.%s", label, key), wantMap, gotMap)
			continue
		}

		assert.Equal(t, normalizeNumber(wantVal), normalizeNumber(gotVal),
			"%s: key %q", label, key)
	}
}

// normalizeNumber folds integer kinds into float64 so YAML-decoded expectations
// compare equal to JSON-decoded response values.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
