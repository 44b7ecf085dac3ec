package gateway

import (
	"context"
	"fmt"
	"time"
)

// HandlerRequest is what a handler receives: the validated envelope contents
// plus the resolved caller. Handlers never see replay, idempotency or
// rate-limit state.
type HandlerRequest struct {
	Action   string
	Payload  map[string]any
	Metadata Metadata
	Caller   Caller
	Identity Identity
}

// Handler executes one action's business logic. It returns a result value for
// the response's data field, or an error — ideally an *Error carrying a
// handler-level code.
type Handler func(ctx context.Context, req HandlerRequest) (any, error)

// ActionSpec declares one action: its handler plus the gating the pipeline
// applies before the handler runs.
type ActionSpec struct {
	Name          string
	Handler       Handler
	RequiresToken bool
	RequiredScope string

	// Write marks side-effecting actions; they must present an idempotency key.
	Write bool

	// Category groups actions sharing a rate-limit budget. Defaults to Name.
	Category string
	Limit    int
	Window   time.Duration
}

// Registry is the static action table built once at process start.
// It is not safe for concurrent registration; register everything before
// serving traffic.
type Registry struct {
	actions map[string]ActionSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]ActionSpec)}
}

// Register adds an action. Duplicate names and nil handlers are configuration
// bugs and fail loudly.
func (r *Registry) Register(spec ActionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("register action: name is required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("register action %s: handler is required", spec.Name)
	}
	if _, exists := r.actions[spec.Name]; exists {
		return fmt.Errorf("register action %s: already registered", spec.Name)
	}
	if spec.Category == "" {
		spec.Category = spec.Name
	}
	if spec.Limit <= 0 {
		spec.Limit = 60
	}
	if spec.Window <= 0 {
		spec.Window = time.Hour
	}
	r.actions[spec.Name] = spec
	return nil
}

// Lookup resolves an action name to its spec.
func (r *Registry) Lookup(action string) (ActionSpec, bool) {
	spec, ok := r.actions[action]
	return spec, ok
}

// Names returns the registered action names, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

// MaxWindow returns the longest rate-limit window across all actions.
// The bucket sweeper uses it as the retention horizon.
func (r *Registry) MaxWindow() time.Duration {
	var max time.Duration
	for _, spec := range r.actions {
		if spec.Window > max {
			max = spec.Window
		}
	}
	return max
}
