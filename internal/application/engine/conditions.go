package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// Branch id suffixes carried by condition and delay result entries.
const (
	branchTrue           = "__true"
	branchFalse          = "__false"
	branchInterrupted    = "__interrupted"
	branchNotInterrupted = "__not_interrupted"
)

// ConditionOutcome is the result of evaluating a condition node.
type ConditionOutcome struct {
	Result       bool
	NodeResultID string
}

// ConditionEvaluator evaluates a condition node's condition list against a
// variable snapshot.
type ConditionEvaluator struct {
	logger *logger.Logger
}

// NewConditionEvaluator creates a ConditionEvaluator.
func NewConditionEvaluator(log *logger.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{logger: log}
}

// Evaluate folds the node's conditions per its operator and returns the
// matching result branch.
func (e *ConditionEvaluator) Evaluate(node *models.Node, vars map[string]string) (*ConditionOutcome, error) {
	if len(node.Conditions) == 0 {
		return nil, fmt.Errorf("condition node %s has no conditions: %w", node.ID, models.ErrNodeProcessingFailed)
	}

	result := e.evalOne(node.Conditions[0], vars)

	switch node.Operator {
	case models.OperatorNone, "":
		if len(node.Conditions) > 1 {
			e.logger.Warn("condition node has extra conditions under None operator",
				"node_id", node.ID,
				"condition_count", len(node.Conditions),
			)
		}
	case models.OperatorAnd:
		for _, c := range node.Conditions[1:] {
			result = result && e.evalOne(c, vars)
		}
	case models.OperatorOr:
		for _, c := range node.Conditions[1:] {
			result = result || e.evalOne(c, vars)
		}
	default:
		return nil, fmt.Errorf("condition node %s has unknown operator %q: %w", node.ID, node.Operator, models.ErrNodeProcessingFailed)
	}

	suffix := branchFalse
	if result {
		suffix = branchTrue
	}

	branch := models.BranchBySuffix(node.ConditionResult, suffix)
	if branch == nil || branch.NodeResultID == "" {
		return nil, fmt.Errorf("condition node %s has no %s result branch: %w", node.ID, suffix, models.ErrNodeProcessingFailed)
	}

	return &ConditionOutcome{Result: result, NodeResultID: branch.NodeResultID}, nil
}

// evalOne evaluates a single condition. Missing variables compare as the
// empty string; numeric comparisons fall through to false when either side
// does not parse.
func (e *ConditionEvaluator) evalOne(c models.Condition, vars map[string]string) bool {
	left := strings.TrimSpace(vars[CleanVariableName(c.Variable)])
	right := strings.TrimSpace(c.Value)

	switch c.CondType {
	case models.CondEqual:
		return left == right
	case models.CondNotEqual:
		return left != right
	case models.CondContains:
		return strings.Contains(strings.ToLower(left), strings.ToLower(right))
	case models.CondNotContains:
		return !strings.Contains(strings.ToLower(left), strings.ToLower(right))
	case models.CondGreaterThan:
		l, r, ok := parseNumericPair(left, right)
		return ok && l > r
	case models.CondLessThan:
		l, r, ok := parseNumericPair(left, right)
		return ok && l < r
	case models.CondExpression:
		return e.evalExpression(c, vars)
	}

	e.logger.Warn("unknown condition type treated as false", "cond_type", c.CondType, "condition_id", c.ID)
	return false
}

// evalExpression runs c.Value as an expression over the full variable
// snapshot. Any compile or runtime error yields false.
func (e *ConditionEvaluator) evalExpression(c models.Condition, vars map[string]string) bool {
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	out, err := expr.Eval(c.Value, env)
	if err != nil {
		e.logger.Warn("condition expression failed", "condition_id", c.ID, "error", err)
		return false
	}

	result, ok := out.(bool)
	if !ok {
		e.logger.Warn("condition expression is not boolean", "condition_id", c.ID)
		return false
	}
	return result
}

func parseNumericPair(left, right string) (float64, float64, bool) {
	l, errL := strconv.ParseFloat(left, 64)
	r, errR := strconv.ParseFloat(right, 64)
	if errL != nil || errR != nil {
		return 0, 0, false
	}
	return l, r, true
}
