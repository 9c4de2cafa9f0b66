package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlow_NodeByID(t *testing.T) {
	flow := &Flow{Nodes: []Node{{ID: "a"}, {ID: "b"}}}

	require.NotNil(t, flow.NodeByID("b"))
	assert.Equal(t, "b", flow.NodeByID("b").ID)
	assert.Nil(t, flow.NodeByID("ghost"))
}

func TestFlow_EdgesFrom_StableOrder(t *testing.T) {
	flow := &Flow{Edges: []Edge{
		{ID: "e9", SourceNodeID: "a", TargetNodeID: "x"},
		{ID: "e1", SourceNodeID: "a", TargetNodeID: "y"},
		{ID: "e5", SourceNodeID: "b", TargetNodeID: "z"},
	}}

	edges := flow.EdgesFrom("a")
	require.Len(t, edges, 2)
	assert.Equal(t, "e1", edges[0].ID)
	assert.Equal(t, "e9", edges[1].ID)

	assert.Empty(t, flow.EdgesFrom("ghost"))
}

func TestNode_Classification(t *testing.T) {
	assert.True(t, (&Node{Type: NodeTypeCondition}).IsInternal())
	assert.True(t, (&Node{Type: NodeTypeDelay}).IsInternal())
	assert.False(t, (&Node{Type: NodeTypeMessage}).IsInternal())

	assert.True(t, (&Node{Type: NodeTypeTriggerKeyword}).IsTrigger())
	assert.True(t, (&Node{Type: NodeTypeTriggerTemplate}).IsTrigger())

	assert.True(t, (&Node{Type: NodeTypeQuestion}).ExpectsReply())
	assert.True(t, (&Node{Type: NodeTypeButtonQuestion}).ExpectsReply())
	assert.True(t, (&Node{Type: NodeTypeListQuestion}).ExpectsReply())
	assert.False(t, (&Node{Type: NodeTypeMessage}).ExpectsReply())
}

func TestBranchBySuffix(t *testing.T) {
	branches := []ResultBranch{
		{ID: "C__true", NodeResultID: "yes"},
		{ID: "C__false", NodeResultID: "no"},
	}

	require.NotNil(t, BranchBySuffix(branches, "__true"))
	assert.Equal(t, "yes", BranchBySuffix(branches, "__true").NodeResultID)
	assert.Nil(t, BranchBySuffix(branches, "__interrupted"))
}

func TestDelayUnit_Seconds(t *testing.T) {
	assert.Equal(t, int64(1), DelayUnitSeconds.Seconds())
	assert.Equal(t, int64(60), DelayUnitMinutes.Seconds())
	assert.Equal(t, int64(3600), DelayUnitHours.Seconds())
	assert.Equal(t, int64(86400), DelayUnitDays.Seconds())
	assert.Zero(t, DelayUnit("eons").Seconds())
}

func TestNormalizedMessage_GetTextContent(t *testing.T) {
	// Interactive selection wins.
	msg := &NormalizedMessage{InteractiveValue: "IIT", Text: "ignored"}
	assert.Equal(t, "IIT", msg.GetTextContent())

	// Plain text next.
	msg = &NormalizedMessage{Text: "hello"}
	assert.Equal(t, "hello", msg.GetTextContent())

	// Email-style subject + body.
	msg = &NormalizedMessage{Subject: "Hi", Body: "there"}
	assert.Equal(t, "Hi\nthere", msg.GetTextContent())

	msg = &NormalizedMessage{Body: "just body"}
	assert.Equal(t, "just body", msg.GetTextContent())

	msg = &NormalizedMessage{ButtonText: "tap"}
	assert.Equal(t, "tap", msg.GetTextContent())

	assert.Empty(t, (&NormalizedMessage{}).GetTextContent())
}

func TestUserStateKey_String(t *testing.T) {
	key := UserStateKey{UserIdentifier: "919", BrandID: 7, Channel: "whatsapp", ChannelAccountID: "acc"}
	assert.Equal(t, "919:7:whatsapp:acc", key.String())
}

func TestUserState_ExitAutomation(t *testing.T) {
	user := &UserState{
		IsInAutomation: true,
		CurrentFlowID:  "F",
		CurrentNodeID:  "N",
		DelayNodeData:  &Node{ID: "D"},
		Validation:     ValidationState{FailureCount: 2, ValidationFailed: true, FailureMessage: "try again"},
	}

	user.ExitAutomation()

	assert.False(t, user.IsInAutomation)
	assert.Empty(t, user.CurrentFlowID)
	assert.Empty(t, user.CurrentNodeID)
	assert.Nil(t, user.DelayNodeData)
	assert.Zero(t, user.Validation.FailureCount)
	assert.False(t, user.Validation.ValidationFailed)
}

func TestEventMetadata_UserStateKey(t *testing.T) {
	m := EventMetadata{Sender: "919", BrandID: 1, Channel: "WhatsApp", ChannelAccountID: "acc"}
	key := m.UserStateKey()
	assert.Equal(t, "whatsapp", key.Channel, "channel is normalized to lower case")
	assert.Equal(t, "919", key.UserIdentifier)
}

func TestDefaultNodeTypeCatalog(t *testing.T) {
	catalog := DefaultNodeTypeCatalog()

	byType := make(map[NodeType]NodeTypeDetail)
	for _, e := range catalog {
		byType[e.NodeType] = e
	}

	assert.True(t, byType[NodeTypeQuestion].UserInputRequired)
	assert.True(t, byType[NodeTypeButtonQuestion].UserInputRequired)
	assert.True(t, byType[NodeTypeListQuestion].UserInputRequired)
	assert.False(t, byType[NodeTypeMessage].UserInputRequired)
	assert.False(t, byType[NodeTypeDelay].UserInputRequired)
	assert.Equal(t, "internal", byType[NodeTypeCondition].Category)
}
