package harness

// Scenario defines one conformance scenario: seeded tokens, a call sequence
// and final-state assertions.
type Scenario struct {
	// Name uniquely identifies this scenario; also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Tokens are issued before the first call and referenced by name.
	Tokens []TokenSeed `yaml:"tokens,omitempty"`

	// Calls is the ordered call sequence.
	Calls []CallStep `yaml:"calls"`

	// Assertions validate storage state after the last call.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TokenSeed declares a pre-issued extension token.
type TokenSeed struct {
	// Name is how calls reference this token.
	Name string `yaml:"name"`

	// UserID is the tenant the token resolves to.
	UserID string `yaml:"userId"`

	Scopes []string `yaml:"scopes,omitempty"`
	Plan   string   `yaml:"plan,omitempty"`
}

// CallStep is one gateway call.
type CallStep struct {
	Action string `yaml:"action"`

	// Token names a TokenSeed; empty means anonymous.
	Token string `yaml:"token,omitempty"`

	// RequestID overrides the generated id, for replay scenarios.
	RequestID string `yaml:"requestId,omitempty"`

	// IdempotencyKey marks the call as a logical-operation attempt.
	IdempotencyKey string `yaml:"idempotencyKey,omitempty"`

	// Version overrides the extension version header.
	Version string `yaml:"version,omitempty"`

	Payload map[string]any `yaml:"payload,omitempty"`

	// AdvanceClock moves the mock clock forward before the call,
	// e.g. "61m" to cross a rate-limit window.
	AdvanceClock string `yaml:"advanceClock,omitempty"`

	// Expect validates the response. Nil means no per-call validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected response.
type ExpectClause struct {
	// OK is the expected envelope verdict. Nil skips the check.
	OK *bool `yaml:"ok,omitempty"`

	// Code is the expected error code, for ok=false responses.
	Code string `yaml:"code,omitempty"`

	// Data is a subset match against the response data: only listed keys are
	// compared, nested maps recurse.
	Data map[string]any `yaml:"data,omitempty"`
}

// Assertion validates storage state after the scenario ran.
type Assertion struct {
	// Type is "products_count" or "events_count".
	Type string `yaml:"type"`

	// Token names the TokenSeed whose user the assertion is about.
	Token string `yaml:"token"`

	// Prefix filters event actions (events_count only), e.g. "AI_".
	Prefix string `yaml:"prefix,omitempty"`

	Count int `yaml:"count"`
}
