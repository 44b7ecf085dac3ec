// Package harness provides scenario-driven conformance testing for the
// gateway pipeline.
//
// Scenarios are YAML files describing a sequence of calls against a freshly
// wired gateway, with expected outcomes per call and assertions over the
// resulting storage state. Full response sequences are additionally compared
// against golden snapshots, with volatile fields (timestamps, generated ids,
// tokens) normalized to stable placeholders.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	tokens:
//	  - name: alice
//	    userId: 11111111-1111-1111-1111-111111111111
//	    scopes: [products:import]
//	    plan: free
//	calls:
//	  - action: IMPORT_PRODUCT
//	    token: alice
//	    idempotencyKey: op-1
//	    payload:
//	      product: { title: "Widget", url: "https://example.com/w" }
//	    expect:
//	      ok: true
//	      data: { status: draft }
//	assertions:
//	  - type: products_count
//	    token: alice
//	    count: 1
//
// # Assertion Types
//
//   - products_count: imported products stored for the token's user
//   - events_count: successful event-log rows for the token's user, filtered
//     by action prefix
package harness
