package testutil

import (
	"context"
	"sync"
)

// ScriptedAIClient returns a canned response for every completion. Tests that
// exercise parsing set Response to shaped output; Err forces the failure path.
type ScriptedAIClient struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []string
}

// Complete records the prompt and returns the scripted result.
func (c *ScriptedAIClient) Complete(_ context.Context, _ string, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	c.Prompts = append(c.Prompts, prompt)
	return c.Response, nil
}
