// Package engine implements the runtime execution core: per-user state
// machine, node traversal, condition evaluation, reply validation and delay
// handling.
package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
)

// VariableStore exposes the per-(user, flow) @variable context to the engine.
// Keys are stored without the leading @.
type VariableStore struct {
	repo repository.VariableRepository
}

// NewVariableStore creates a VariableStore over the given repository.
func NewVariableStore(repo repository.VariableRepository) *VariableStore {
	return &VariableStore{repo: repo}
}

// CleanVariableName strips the leading @ and surrounding whitespace.
func CleanVariableName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// Get returns a variable value; missing variables read as the empty string.
func (s *VariableStore) Get(ctx context.Context, userStateID, flowID, name string) (string, error) {
	return s.repo.Get(ctx, userStateID, flowID, CleanVariableName(name))
}

// Set stores a variable value.
func (s *VariableStore) Set(ctx context.Context, userStateID, flowID, name, value string) error {
	return s.repo.Set(ctx, userStateID, flowID, CleanVariableName(name), value)
}

// Snapshot returns all variables of one (user, flow) pair.
func (s *VariableStore) Snapshot(ctx context.Context, userStateID, flowID string) (map[string]string, error) {
	return s.repo.Snapshot(ctx, userStateID, flowID)
}

var variableToken = regexp.MustCompile(`@[A-Za-z_][A-Za-z0-9_]*`)

// Interpolate replaces @name tokens in text with values from the snapshot.
// Unknown tokens are left as-is.
func Interpolate(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "@") {
		return text
	}
	return variableToken.ReplaceAllStringFunc(text, func(tok string) string {
		if val, ok := vars[tok[1:]]; ok {
			return val
		}
		return tok
	})
}
