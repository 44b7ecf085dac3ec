package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(_ context.Context, _ HandlerRequest) (any, error) { return nil, nil }

func TestRegisterAppliesDefaults(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ActionSpec{Name: "PING", Handler: nopHandler}))

	spec, ok := r.Lookup("PING")
	require.True(t, ok)
	assert.Equal(t, "PING", spec.Category)
	assert.Equal(t, 60, spec.Limit)
	assert.Equal(t, time.Hour, spec.Window)
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(ActionSpec{Handler: nopHandler}), "missing name accepted")
	assert.Error(t, r.Register(ActionSpec{Name: "PING"}), "nil handler accepted")

	require.NoError(t, r.Register(ActionSpec{Name: "PING", Handler: nopHandler}))
	assert.Error(t, r.Register(ActionSpec{Name: "PING", Handler: nopHandler}), "duplicate accepted")
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("NOPE")
	assert.False(t, ok)
}

func TestMaxWindow(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ActionSpec{Name: "A", Handler: nopHandler, Limit: 1, Window: time.Minute}))
	require.NoError(t, r.Register(ActionSpec{Name: "B", Handler: nopHandler, Limit: 1, Window: 6 * time.Hour}))

	assert.Equal(t, 6*time.Hour, r.MaxWindow())
}
