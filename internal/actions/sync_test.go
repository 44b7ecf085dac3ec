package actions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

func TestSyncQueuesJob(t *testing.T) {
	svc := newTestService(t, nil)

	ids := []any{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	data, err := svc.syncHandler("stock")(context.Background(), handlerReq(t, map[string]any{
		"productIds": ids,
	}))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.NotEmpty(t, out["jobId"])
	assert.Equal(t, "queued", out["status"])
	assert.Equal(t, 3, out["productCount"])
}

func TestSyncRejectsBadPayload(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	cases := map[string]map[string]any{
		"missing ids": {},
		"empty ids":   {"productIds": []any{}},
		"non-uuid":    {"productIds": []any{"not-a-uuid"}},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.syncHandler("price")(ctx, handlerReq(t, payload))
			assert.True(t, gateway.IsCode(err, gateway.CodeInvalidPayload), "err = %v", err)
		})
	}
}

func TestSyncBoundsProductCount(t *testing.T) {
	svc := newTestService(t, nil)

	ids := make([]any, maxSyncProducts+1)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	_, err := svc.syncHandler("stock")(context.Background(), handlerReq(t, map[string]any{
		"productIds": ids,
	}))
	assert.True(t, gateway.IsCode(err, gateway.CodeInvalidPayload), "err = %v", err)
}
