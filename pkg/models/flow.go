package models

import (
	"strings"
	"time"
)

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	// FlowStatusDraft marks a flow under construction; never matched by triggers.
	FlowStatusDraft FlowStatus = "draft"

	// FlowStatusPublished marks a flow eligible for trigger matching.
	FlowStatusPublished FlowStatus = "published"

	// FlowStatusStop marks a previously published flow taken out of rotation.
	FlowStatusStop FlowStatus = "stop"
)

// NodeType is the concrete node kind driving dispatch in the engine.
type NodeType string

const (
	NodeTypeTriggerKeyword  NodeType = "trigger_keyword"
	NodeTypeTriggerTemplate NodeType = "trigger_template"
	NodeTypeMessage         NodeType = "message"
	NodeTypeQuestion        NodeType = "question"
	NodeTypeButtonQuestion  NodeType = "button_question"
	NodeTypeListQuestion    NodeType = "list_question"
	NodeTypeCondition       NodeType = "condition"
	NodeTypeDelay           NodeType = "delay"
)

// FlowNodeType is the coarse node family used by the authoring UI.
type FlowNodeType string

const (
	FlowNodeTypeTrigger   FlowNodeType = "Trigger"
	FlowNodeTypeMessage   FlowNodeType = "Message"
	FlowNodeTypeQuestion  FlowNodeType = "Question"
	FlowNodeTypeCondition FlowNodeType = "Condition"
	FlowNodeTypeDelay     FlowNodeType = "Delay"
)

// Flow is a directed graph of nodes authored by a brand operator.
type Flow struct {
	ID        string     `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	BrandID   int64      `bson:"brand_id" json:"brand_id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Status    FlowStatus `bson:"status" json:"status"`
	Nodes     []Node     `bson:"nodes" json:"nodes"`
	Edges     []Edge     `bson:"edges" json:"edges"`
	Transform string     `bson:"transform,omitempty" json:"transform,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns all edges leaving the given node, ordered by edge id so
// callers observe a stable successor when the graph carries duplicates.
func (f *Flow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Position is the authoring-canvas placement of a node.
type Position struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
}

// Node is a single vertex of a flow graph. Type-specific fields are populated
// according to Type; the rest stay zero.
type Node struct {
	ID           string       `bson:"id" json:"id"`
	Type         NodeType     `bson:"type" json:"type"`
	FlowNodeType FlowNodeType `bson:"flow_node_type" json:"flow_node_type"`
	Position     Position     `bson:"position" json:"position"`
	IsStartNode  bool         `bson:"is_start_node" json:"is_start_node"`

	// trigger_keyword
	TriggerKeywords []string `bson:"trigger_keywords,omitempty" json:"trigger_keywords,omitempty"`

	// trigger_template
	TriggerTemplateID string `bson:"trigger_template_id,omitempty" json:"trigger_template_id,omitempty"`

	// message / question / list_question
	FlowReplies []FlowReply `bson:"flow_replies,omitempty" json:"flow_replies,omitempty"`

	// question / button_question / list_question
	UserInputVariable string            `bson:"user_input_variable,omitempty" json:"user_input_variable,omitempty"`
	AnswerValidation  *AnswerValidation `bson:"answer_validation,omitempty" json:"answer_validation,omitempty"`
	IsMediaAccepted   bool              `bson:"is_media_accepted,omitempty" json:"is_media_accepted,omitempty"`

	// button_question
	Interactive         *InteractiveSpec `bson:"interactive,omitempty" json:"interactive,omitempty"`
	ExpectedAnswers     []ExpectedAnswer `bson:"expected_answers,omitempty" json:"expected_answers,omitempty"`
	DefaultNodeResultID string           `bson:"default_node_result_id,omitempty" json:"default_node_result_id,omitempty"`

	// condition
	Conditions      []Condition       `bson:"conditions,omitempty" json:"conditions,omitempty"`
	Operator        ConditionOperator `bson:"operator,omitempty" json:"operator,omitempty"`
	ConditionResult []ResultBranch    `bson:"condition_result,omitempty" json:"condition_result,omitempty"`

	// delay
	DelayDuration  int            `bson:"delay_duration,omitempty" json:"delay_duration,omitempty"`
	DelayUnit      DelayUnit      `bson:"delay_unit,omitempty" json:"delay_unit,omitempty"`
	WaitForReply   bool           `bson:"wait_for_reply,omitempty" json:"wait_for_reply,omitempty"`
	DelayInterrupt bool           `bson:"delay_interrupt,omitempty" json:"delay_interrupt,omitempty"`
	DelayResult    []ResultBranch `bson:"delay_result,omitempty" json:"delay_result,omitempty"`
}

// IsInternal reports whether the node is evaluated silently rather than rendered.
func (n *Node) IsInternal() bool {
	return n.Type == NodeTypeCondition || n.Type == NodeTypeDelay
}

// IsTrigger reports whether the node starts a flow and is never rendered.
func (n *Node) IsTrigger() bool {
	return n.Type == NodeTypeTriggerKeyword || n.Type == NodeTypeTriggerTemplate
}

// ExpectsReply reports whether the node awaits a user answer.
func (n *Node) ExpectsReply() bool {
	switch n.Type {
	case NodeTypeQuestion, NodeTypeButtonQuestion, NodeTypeListQuestion:
		return true
	}
	return false
}

// Edge connects two nodes. Edges are unlabeled; branch outcomes are expressed
// through node-internal result branches instead.
type Edge struct {
	ID           string `bson:"id" json:"id"`
	SourceNodeID string `bson:"source_node_id" json:"source_node_id"`
	TargetNodeID string `bson:"target_node_id" json:"target_node_id"`
}

// FlowReply is a single outbound payload of a message or question node.
type FlowReply struct {
	Type     string `bson:"type" json:"type"`
	Text     string `bson:"text,omitempty" json:"text,omitempty"`
	MediaURL string `bson:"media_url,omitempty" json:"media_url,omitempty"`
	Caption  string `bson:"caption,omitempty" json:"caption,omitempty"`
}

// InteractiveSpec holds the header/body/footer of a button question.
type InteractiveSpec struct {
	Header string `bson:"header,omitempty" json:"header,omitempty"`
	Body   string `bson:"body,omitempty" json:"body,omitempty"`
	Footer string `bson:"footer,omitempty" json:"footer,omitempty"`
}

// ExpectedAnswer maps an interactive choice to its target node.
type ExpectedAnswer struct {
	ID            string `bson:"id" json:"id"`
	ExpectedInput string `bson:"expectedInput" json:"expectedInput"`
	IsDefault     bool   `bson:"isDefault,omitempty" json:"isDefault,omitempty"`
	NodeResultID  string `bson:"nodeResultId" json:"nodeResultId"`
}

// AnswerValidation holds a reply node's validation settings. The reply
// validator reads Fallback and FailsCount; Type, MinValue, MaxValue and Regex
// are stored but free-text answers are not checked against them.
type AnswerValidation struct {
	Type       string `bson:"type,omitempty" json:"type,omitempty"`
	MinValue   string `bson:"minValue,omitempty" json:"minValue,omitempty"`
	MaxValue   string `bson:"maxValue,omitempty" json:"maxValue,omitempty"`
	Regex      string `bson:"regex,omitempty" json:"regex,omitempty"`
	Fallback   string `bson:"fallback,omitempty" json:"fallback,omitempty"`
	FailsCount int    `bson:"failsCount,omitempty" json:"failsCount,omitempty"`
}

// ConditionOperator combines the results of a condition list.
type ConditionOperator string

const (
	OperatorNone ConditionOperator = "None"
	OperatorAnd  ConditionOperator = "And"
	OperatorOr   ConditionOperator = "Or"
)

// ConditionType is the comparison applied by a single condition entry.
type ConditionType string

const (
	CondEqual       ConditionType = "Equal"
	CondNotEqual    ConditionType = "NotEqual"
	CondContains    ConditionType = "Contains"
	CondNotContains ConditionType = "NotContains"
	CondGreaterThan ConditionType = "GreaterThan"
	CondLessThan    ConditionType = "LessThan"

	// CondExpression evaluates Value as an expression against the full
	// variable snapshot instead of comparing a single variable.
	CondExpression ConditionType = "Expression"
)

// Condition is one comparison inside a condition node.
type Condition struct {
	ID       string        `bson:"id" json:"id"`
	CondType ConditionType `bson:"cond_type" json:"cond_type"`
	Variable string        `bson:"variable" json:"variable"`
	Value    string        `bson:"value" json:"value"`
}

// ResultBranch points a branch outcome at its target node, bypassing the edge set.
// Branch identity is carried in the id suffix (__true, __false, __interrupted,
// __not_interrupted).
type ResultBranch struct {
	ID           string `bson:"id" json:"id"`
	NodeResultID string `bson:"nodeResultId" json:"nodeResultId"`
}

// BranchBySuffix returns the branch whose id carries the given suffix, or nil.
func BranchBySuffix(branches []ResultBranch, suffix string) *ResultBranch {
	for i := range branches {
		if strings.HasSuffix(branches[i].ID, suffix) {
			return &branches[i]
		}
	}
	return nil
}

// DelayUnit is the unit of a delay node's duration.
type DelayUnit string

const (
	DelayUnitSeconds DelayUnit = "seconds"
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// Seconds converts the unit to its length in seconds; unknown units count as zero.
func (u DelayUnit) Seconds() int64 {
	switch u {
	case DelayUnitSeconds:
		return 1
	case DelayUnitMinutes:
		return 60
	case DelayUnitHours:
		return 3600
	case DelayUnitDays:
		return 86400
	}
	return 0
}
