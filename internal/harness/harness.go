package harness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/testutil"
)

// Runner executes scenarios against a fresh gateway environment each time.
type Runner struct {
	t *testing.T
}

// NewRunner creates a Runner bound to t.
func NewRunner(t *testing.T) *Runner {
	return &Runner{t: t}
}

// Run executes sc against a fresh environment, checking each call's expect
// clause and the final assertions, and returns the normalized response
// sequence for golden comparison.
func (r *Runner) Run(sc *Scenario) []CallSnapshot {
	t := r.t
	t.Helper()

	env := testutil.NewEnv(t)

	tokens := make(map[string]TokenSeed, len(sc.Tokens))
	tokenValues := make(map[string]string, len(sc.Tokens))
	for _, seed := range sc.Tokens {
		tokens[seed.Name] = seed
		tokenValues[seed.Name] = env.IssueToken(t, seed.UserID, seed.Scopes, seed.Plan)
	}

	snapshots := make([]CallSnapshot, 0, len(sc.Calls))
	for i, call := range sc.Calls {
		if call.AdvanceClock != "" {
			d, err := time.ParseDuration(call.AdvanceClock)
			require.NoError(t, err, "call %d: bad advanceClock", i)
			env.Clock.Add(d)
		}

		opts := []testutil.RequestOption{}
		if call.Token != "" {
			opts = append(opts, testutil.WithToken(tokenValues[call.Token]))
		}
		if call.RequestID != "" {
			opts = append(opts, testutil.WithRequestID(call.RequestID))
		}
		if call.IdempotencyKey != "" {
			opts = append(opts, testutil.WithIdempotencyKey(call.IdempotencyKey))
		}
		if call.Version != "" {
			opts = append(opts, testutil.WithVersion(call.Version))
		}

		req := testutil.NewRequest(t, call.Action, call.Payload, opts...)
		resp := env.Gateway.Handle(context.Background(), req)

		r.checkExpect(i, call, resp)
		snapshots = append(snapshots, snapshotOf(call.Action, resp))
	}

	for i, a := range sc.Assertions {
		r.checkAssertion(env, i, a, tokens[a.Token])
	}

	return snapshots
}

func (r *Runner) checkExpect(i int, call CallStep, resp *gateway.Response) {
	t := r.t
	t.Helper()

	label := fmt.Sprintf("call %d (%s)", i, call.Action)
	if call.Expect == nil {
		return
	}
	if call.Expect.OK != nil {
		assert.Equal(t, *call.Expect.OK, resp.OK, "%s: ok", label)
	}
	if call.Expect.Code != "" {
		assert.Equal(t, call.Expect.Code, string(resp.Code), "%s: code", label)
	}
	if len(call.Expect.Data) > 0 {
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok, "%s: data is not an object", label)
		assertSubset(t, label+": data", call.Expect.Data, data)
	}
}

func (r *Runner) checkAssertion(env *testutil.Env, i int, a Assertion, seed TokenSeed) {
	t := r.t
	t.Helper()

	ctx := context.Background()
	label := fmt.Sprintf("assertion %d (%s)", i, a.Type)

	switch a.Type {
	case "products_count":
		n, err := env.Store.CountProductsSince(ctx, seed.UserID, time.Time{})
		require.NoError(t, err, label)
		assert.Equal(t, a.Count, n, label)
	case "events_count":
		n, err := env.Store.CountEventsSince(ctx, seed.UserID, a.Prefix, time.Time{})
		require.NoError(t, err, label)
		assert.Equal(t, a.Count, n, label)
	}
}
