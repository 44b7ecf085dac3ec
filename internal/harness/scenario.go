package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadScenarios reads every *.yaml scenario under dir, sorted by filename.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("at least one call is required")
	}

	tokens := make(map[string]bool, len(s.Tokens))
	for _, seed := range s.Tokens {
		if seed.Name == "" {
			return fmt.Errorf("token seed needs a name")
		}
		if seed.UserID == "" {
			return fmt.Errorf("token %q needs a userId", seed.Name)
		}
		if tokens[seed.Name] {
			return fmt.Errorf("duplicate token name %q", seed.Name)
		}
		tokens[seed.Name] = true
	}

	for i, call := range s.Calls {
		if call.Action == "" {
			return fmt.Errorf("call %d: action is required", i)
		}
		if call.Token != "" && !tokens[call.Token] {
			return fmt.Errorf("call %d: unknown token %q", i, call.Token)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case "products_count", "events_count":
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		if !tokens[a.Token] {
			return fmt.Errorf("assertion %d: unknown token %q", i, a.Token)
		}
	}
	return nil
}
