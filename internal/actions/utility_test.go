package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	svc := newTestService(t, nil)

	// Default test identity runs 5.8.0 against min 5.7.0 / latest 5.8.1.
	data, err := svc.checkVersion(context.Background(), handlerReq(t, nil))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.Equal(t, "5.8.0", out["current"])
	assert.Equal(t, "5.8.1", out["latest"])
	assert.Equal(t, "5.7.0", out["minimum"])
	assert.Equal(t, true, out["updateAvailable"])
	assert.Equal(t, false, out["updateRequired"])
}

func TestGetSettingsEmpty(t *testing.T) {
	svc := newTestService(t, nil)

	data, err := svc.getSettings(context.Background(), handlerReq(t, nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"settings": map[string]any{}}, data)
}

func TestCheckQuota(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	data, err := svc.checkQuota(ctx, handlerReq(t, nil))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.Equal(t, "free", out["plan"])
	assert.Equal(t, map[string]any{"imports": 10, "ai": 5}, out["limits"])
	assert.Equal(t, map[string]any{"imports": 0, "ai": 0}, out["usage"])
	assert.Equal(t, map[string]any{"imports": 10, "ai": 5}, out["remaining"])
}

func TestCheckQuotaCountsUsage(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.importProduct(ctx, handlerReq(t, map[string]any{
		"product": map[string]any{"title": "x", "url": "https://example.com"},
	}))
	require.NoError(t, err)

	data, err := svc.checkQuota(ctx, handlerReq(t, nil))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.Equal(t, map[string]any{"imports": 1, "ai": 0}, out["usage"])
	assert.Equal(t, map[string]any{"imports": 9, "ai": 5}, out["remaining"])
}

func TestCheckQuotaUnknownPlanFallsBack(t *testing.T) {
	svc := newTestService(t, nil)

	req := handlerReq(t, nil)
	req.Caller.Plan = "legacy"
	data, err := svc.checkQuota(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "free", data.(map[string]any)["plan"])
}

func TestLogAnalytics(t *testing.T) {
	svc := newTestService(t, nil)

	data, err := svc.logAnalytics(context.Background(), handlerReq(t, map[string]any{
		"eventType": "page_view",
		"eventData": map[string]any{"path": "/p/1"},
		"url":       "https://example.com/p/1",
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"logged": true}, data)
}

func TestLogAction(t *testing.T) {
	svc := newTestService(t, nil)

	data, err := svc.logAction(context.Background(), handlerReq(t, map[string]any{
		"actionType":   "import",
		"platform":     "amazon",
		"productTitle": "Widget",
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"logged": true}, data)
}
