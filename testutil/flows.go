package testutil

import (
	"strconv"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// FlowBuilder assembles flow fixtures for tests.
type FlowBuilder struct {
	flow *models.Flow
	edge int
}

// NewFlow starts a published flow fixture.
func NewFlow(id string, brandID int64) *FlowBuilder {
	return &FlowBuilder{flow: &models.Flow{
		ID:        id,
		Name:      id,
		BrandID:   brandID,
		UserID:    "author-1",
		Status:    models.FlowStatusPublished,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}}
}

// Status overrides the flow status.
func (b *FlowBuilder) Status(status models.FlowStatus) *FlowBuilder {
	b.flow.Status = status
	return b
}

// Owner overrides the author.
func (b *FlowBuilder) Owner(userID string) *FlowBuilder {
	b.flow.UserID = userID
	return b
}

// UpdatedAt overrides the update timestamp (for tie-break tests).
func (b *FlowBuilder) UpdatedAt(t time.Time) *FlowBuilder {
	b.flow.UpdatedAt = t
	return b
}

// Node appends an arbitrary node.
func (b *FlowBuilder) Node(node models.Node) *FlowBuilder {
	b.flow.Nodes = append(b.flow.Nodes, node)
	return b
}

// KeywordTrigger appends a trigger_keyword node.
func (b *FlowBuilder) KeywordTrigger(id string, keywords ...string) *FlowBuilder {
	return b.Node(models.Node{
		ID:              id,
		Type:            models.NodeTypeTriggerKeyword,
		FlowNodeType:    models.FlowNodeTypeTrigger,
		IsStartNode:     true,
		TriggerKeywords: keywords,
	})
}

// Message appends a message node with one text reply.
func (b *FlowBuilder) Message(id, text string) *FlowBuilder {
	return b.Node(models.Node{
		ID:           id,
		Type:         models.NodeTypeMessage,
		FlowNodeType: models.FlowNodeTypeMessage,
		FlowReplies:  []models.FlowReply{{Type: "text", Text: text}},
	})
}

// Question appends a free-text question node storing its reply in variable.
func (b *FlowBuilder) Question(id, prompt, variable string) *FlowBuilder {
	return b.Node(models.Node{
		ID:                id,
		Type:              models.NodeTypeQuestion,
		FlowNodeType:      models.FlowNodeTypeQuestion,
		FlowReplies:       []models.FlowReply{{Type: "text", Text: prompt}},
		UserInputVariable: variable,
	})
}

// ButtonQuestion appends a button_question node.
func (b *FlowBuilder) ButtonQuestion(id, body string, validation *models.AnswerValidation, answers ...models.ExpectedAnswer) *FlowBuilder {
	return b.Node(models.Node{
		ID:               id,
		Type:             models.NodeTypeButtonQuestion,
		FlowNodeType:     models.FlowNodeTypeQuestion,
		Interactive:      &models.InteractiveSpec{Body: body},
		ExpectedAnswers:  answers,
		AnswerValidation: validation,
	})
}

// Condition appends a condition node with true/false result branches.
func (b *FlowBuilder) Condition(id string, operator models.ConditionOperator, trueTarget, falseTarget string, conditions ...models.Condition) *FlowBuilder {
	return b.Node(models.Node{
		ID:           id,
		Type:         models.NodeTypeCondition,
		FlowNodeType: models.FlowNodeTypeCondition,
		Conditions:   conditions,
		Operator:     operator,
		ConditionResult: []models.ResultBranch{
			{ID: id + "__true", NodeResultID: trueTarget},
			{ID: id + "__false", NodeResultID: falseTarget},
		},
	})
}

// Delay appends a delay node whose not-interrupted branch resumes at target.
func (b *FlowBuilder) Delay(id string, duration int, unit models.DelayUnit, target string) *FlowBuilder {
	return b.Node(models.Node{
		ID:            id,
		Type:          models.NodeTypeDelay,
		FlowNodeType:  models.FlowNodeTypeDelay,
		DelayDuration: duration,
		DelayUnit:     unit,
		DelayResult: []models.ResultBranch{
			{ID: id + "__interrupted", NodeResultID: ""},
			{ID: id + "__not_interrupted", NodeResultID: target},
		},
	})
}

// Edge connects two nodes.
func (b *FlowBuilder) Edge(from, to string) *FlowBuilder {
	b.edge++
	b.flow.Edges = append(b.flow.Edges, models.Edge{
		ID:           b.flow.ID + "-e" + strconv.Itoa(b.edge),
		SourceNodeID: from,
		TargetNodeID: to,
	})
	return b
}

// Build returns the assembled flow.
func (b *FlowBuilder) Build() *models.Flow {
	return b.flow
}
