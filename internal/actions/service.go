// Package actions implements the gateway's action catalog: token lifecycle,
// product import, AI content generation, sync job queueing and the utility
// endpoints. Each handler validates its payload against a CUE schema before
// touching storage.
package actions

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/store"
)

// Budget overrides one action's rate-limit allowance.
type Budget struct {
	Limit  int
	Window time.Duration
}

// Config wires a Service.
type Config struct {
	Store    *store.Store
	AI       AIClient // optional; AI actions fail with HANDLER_ERROR when unset
	TokenTTL time.Duration

	MinVersion    gateway.Version
	LatestVersion gateway.Version

	// Budgets overrides per-action rate limits; unnamed actions keep the
	// catalog defaults.
	Budgets map[string]Budget

	Clock  clock.Clock  // optional
	Logger *slog.Logger // optional
}

// Service holds handler dependencies shared across the action catalog.
type Service struct {
	store    *store.Store
	ai       AIClient
	tokenTTL time.Duration
	min      gateway.Version
	latest   gateway.Version
	budgets  map[string]Budget
	clock    clock.Clock
	log      *slog.Logger
}

const defaultTokenTTL = 30 * 24 * time.Hour

// New builds a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("actions: store is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		store:    cfg.Store,
		ai:       cfg.AI,
		tokenTTL: ttl,
		min:      cfg.MinVersion,
		latest:   cfg.LatestVersion,
		budgets:  cfg.Budgets,
		clock:    clk,
		log:      log,
	}, nil
}

// Register installs the full action catalog into reg.
func (s *Service) Register(reg *gateway.Registry) error {
	specs := []gateway.ActionSpec{
		// Auth.
		{Name: "AUTH_GENERATE_TOKEN", Handler: s.generateToken, Limit: 10, Window: time.Hour},
		{Name: "AUTH_VALIDATE_TOKEN", Handler: s.validateToken, RequiresToken: true, Limit: 100, Window: time.Hour},
		{Name: "AUTH_REFRESH_TOKEN", Handler: s.refreshToken, Limit: 20, Window: time.Hour},
		{Name: "AUTH_REVOKE_TOKEN", Handler: s.revokeToken, RequiresToken: true, Limit: 10, Window: time.Hour},
		{Name: "AUTH_HEARTBEAT", Handler: s.heartbeat, RequiresToken: true, Limit: 60, Window: time.Hour},

		// Import. Each draws on its own budget category.
		{Name: "IMPORT_PRODUCT", Handler: s.importProduct, RequiresToken: true, RequiredScope: "products:import", Write: true, Limit: 50, Window: time.Hour},
		{Name: "IMPORT_BULK", Handler: s.importBulk, RequiresToken: true, RequiredScope: "products:bulk", Write: true, Limit: 10, Window: time.Hour},

		// AI. Writes: each call spends quota and logs an event row, so a
		// retried call must replay rather than bill twice.
		{Name: "AI_OPTIMIZE_TITLE", Handler: s.aiHandler("title"), RequiresToken: true, RequiredScope: "ai:optimize", Write: true, Limit: 30, Window: time.Hour},
		{Name: "AI_OPTIMIZE_DESCRIPTION", Handler: s.aiHandler("description"), RequiresToken: true, RequiredScope: "ai:optimize", Write: true, Limit: 30, Window: time.Hour},
		{Name: "AI_OPTIMIZE_FULL", Handler: s.aiHandler("full"), RequiresToken: true, RequiredScope: "ai:optimize", Write: true, Limit: 20, Window: time.Hour},
		{Name: "AI_GENERATE_SEO", Handler: s.aiHandler("seo"), RequiresToken: true, RequiredScope: "ai:seo", Write: true, Limit: 30, Window: time.Hour},
		{Name: "AI_GENERATE_TAGS", Handler: s.aiHandler("tags"), RequiresToken: true, RequiredScope: "ai:optimize", Write: true, Limit: 30, Window: time.Hour},

		// Sync.
		{Name: "SYNC_STOCK", Handler: s.syncHandler("stock"), RequiresToken: true, RequiredScope: "sync:stock", Write: true, Limit: 20, Window: time.Hour},
		{Name: "SYNC_PRICE", Handler: s.syncHandler("price"), RequiresToken: true, RequiredScope: "sync:price", Write: true, Limit: 20, Window: time.Hour},

		// Utility.
		{Name: "CHECK_VERSION", Handler: s.checkVersion, Limit: 100, Window: time.Hour},
		{Name: "GET_SETTINGS", Handler: s.getSettings, RequiresToken: true, Limit: 30, Window: time.Hour},
		{Name: "LOG_ANALYTICS", Handler: s.logAnalytics, RequiresToken: true, Limit: 100, Window: time.Hour},
		{Name: "LOG_ACTION", Handler: s.logAction, RequiresToken: true, Limit: 200, Window: time.Hour},
		{Name: "CHECK_QUOTA", Handler: s.checkQuota, RequiresToken: true, Limit: 50, Window: time.Hour},
	}

	for _, spec := range specs {
		if b, ok := s.budgets[spec.Name]; ok {
			spec.Limit = b.Limit
			spec.Window = b.Window
		}
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
