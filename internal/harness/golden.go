package harness

import (
	"regexp"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// CallSnapshot is the golden-comparable form of one response. Volatile values
// (generated ids, minted tokens) are replaced with stable placeholders; the
// frozen test clock keeps everything else deterministic on its own.
type CallSnapshot struct {
	Action    string         `json:"action"`
	OK        bool           `json:"ok"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      any            `json:"data,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Remaining *int           `json:"rateRemaining,omitempty"`
}

func snapshotOf(action string, resp *gateway.Response) CallSnapshot {
	snap := CallSnapshot{
		Action:  action,
		OK:      resp.OK,
		Code:    string(resp.Code),
		Message: resp.Message,
		Data:    normalizeValue(resp.Data),
	}
	if d := normalizeValue(resp.Details); d != nil {
		snap.Details, _ = d.(map[string]any)
	}
	if rl := resp.Meta.RateLimit; rl != nil {
		remaining := rl.Remaining
		snap.Remaining = &remaining
	}
	return snap
}

// AssertGolden compares snapshots against testdata/golden/<name>.golden.
// Regenerate with: go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, snapshots []CallSnapshot) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.AssertJson(t, name, snapshots)
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// normalizeValue rewrites volatile leaves to placeholders, recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case string:
		return normalizeString(val)
	default:
		return v
	}
}

func normalizeString(s string) string {
	switch {
	case strings.HasPrefix(s, "ext-"):
		return "<token>"
	case strings.HasPrefix(s, "rft-"):
		return "<refresh-token>"
	case uuidPattern.MatchString(strings.ToLower(s)):
		return "<uuid>"
	default:
		return s
	}
}
