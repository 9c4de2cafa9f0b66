package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func conditionNode(operator models.ConditionOperator, conditions ...models.Condition) *models.Node {
	return &models.Node{
		ID:         "C",
		Type:       models.NodeTypeCondition,
		Conditions: conditions,
		Operator:   operator,
		ConditionResult: []models.ResultBranch{
			{ID: "C__true", NodeResultID: "Myes"},
			{ID: "C__false", NodeResultID: "Mno"},
		},
	}
}

func TestConditionEvaluator_Equal(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "John",
	})

	out, err := e.Evaluate(node, map[string]string{"name": "John"})
	require.NoError(t, err)
	assert.True(t, out.Result)
	assert.Equal(t, "Myes", out.NodeResultID)

	out, err = e.Evaluate(node, map[string]string{"name": "Jane"})
	require.NoError(t, err)
	assert.False(t, out.Result)
	assert.Equal(t, "Mno", out.NodeResultID)
}

func TestConditionEvaluator_EqualTrimsWhitespace(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: " John ",
	})

	out, err := e.Evaluate(node, map[string]string{"name": "John  "})
	require.NoError(t, err)
	assert.True(t, out.Result)
}

func TestConditionEvaluator_MissingVariableComparesAsEmpty(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondEqual, Variable: "@missing", Value: "",
	})

	out, err := e.Evaluate(node, map[string]string{})
	require.NoError(t, err)
	assert.True(t, out.Result)
}

func TestConditionEvaluator_ContainsCaseInsensitive(t *testing.T) {
	e := NewConditionEvaluator(testLogger())

	node := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondContains, Variable: "@city", Value: "DEL",
	})
	out, err := e.Evaluate(node, map[string]string{"city": "New Delhi"})
	require.NoError(t, err)
	assert.True(t, out.Result)

	node = conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondNotContains, Variable: "@city", Value: "mumbai",
	})
	out, err = e.Evaluate(node, map[string]string{"city": "New Delhi"})
	require.NoError(t, err)
	assert.True(t, out.Result)
}

func TestConditionEvaluator_NumericComparisons(t *testing.T) {
	e := NewConditionEvaluator(testLogger())

	gt := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondGreaterThan, Variable: "@age", Value: "18",
	})

	out, err := e.Evaluate(gt, map[string]string{"age": "21"})
	require.NoError(t, err)
	assert.True(t, out.Result)

	out, err = e.Evaluate(gt, map[string]string{"age": "17"})
	require.NoError(t, err)
	assert.False(t, out.Result)

	// Non-numeric side falls through to false.
	out, err = e.Evaluate(gt, map[string]string{"age": "twenty"})
	require.NoError(t, err)
	assert.False(t, out.Result)

	lt := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondLessThan, Variable: "@age", Value: "18",
	})
	out, err = e.Evaluate(lt, map[string]string{"age": "9"})
	require.NoError(t, err)
	assert.True(t, out.Result)
}

func TestConditionEvaluator_AndOrFolding(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	vars := map[string]string{"name": "John", "age": "21"}

	and := conditionNode(models.OperatorAnd,
		models.Condition{ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "John"},
		models.Condition{ID: "c2", CondType: models.CondGreaterThan, Variable: "@age", Value: "30"},
	)
	out, err := e.Evaluate(and, vars)
	require.NoError(t, err)
	assert.False(t, out.Result)

	or := conditionNode(models.OperatorOr,
		models.Condition{ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "Jane"},
		models.Condition{ID: "c2", CondType: models.CondGreaterThan, Variable: "@age", Value: "18"},
	)
	out, err = e.Evaluate(or, vars)
	require.NoError(t, err)
	assert.True(t, out.Result)
}

func TestConditionEvaluator_NoneIgnoresExtraConditions(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone,
		models.Condition{ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "John"},
		models.Condition{ID: "c2", CondType: models.CondEqual, Variable: "@name", Value: "Jane"},
	)

	out, err := e.Evaluate(node, map[string]string{"name": "John"})
	require.NoError(t, err)
	assert.True(t, out.Result, "only the first condition counts under None")
}

func TestConditionEvaluator_Expression(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondExpression, Value: `name == "John" && city != ""`,
	})

	out, err := e.Evaluate(node, map[string]string{"name": "John", "city": "Delhi"})
	require.NoError(t, err)
	assert.True(t, out.Result)

	// Broken expressions evaluate to false rather than failing the node.
	broken := conditionNode(models.OperatorNone, models.Condition{
		ID: "c1", CondType: models.CondExpression, Value: `name ==`,
	})
	out, err = e.Evaluate(broken, map[string]string{"name": "John"})
	require.NoError(t, err)
	assert.False(t, out.Result)
}

func TestConditionEvaluator_EmptyConditionsFails(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := conditionNode(models.OperatorNone)

	_, err := e.Evaluate(node, map[string]string{})
	assert.Error(t, err)
}

func TestConditionEvaluator_MissingBranchFails(t *testing.T) {
	e := NewConditionEvaluator(testLogger())
	node := &models.Node{
		ID:   "C",
		Type: models.NodeTypeCondition,
		Conditions: []models.Condition{
			{ID: "c1", CondType: models.CondEqual, Variable: "@x", Value: ""},
		},
		Operator: models.OperatorNone,
		ConditionResult: []models.ResultBranch{
			{ID: "C__false", NodeResultID: "Mno"},
		},
	}

	_, err := e.Evaluate(node, map[string]string{})
	assert.Error(t, err)
}
