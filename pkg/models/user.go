package models

import (
	"fmt"
	"time"
)

// UserStateKey uniquely identifies an end user within a channel context.
type UserStateKey struct {
	UserIdentifier   string `bson:"user_identifier" json:"user_identifier"`
	BrandID          int64  `bson:"brand_id" json:"brand_id"`
	Channel          string `bson:"channel" json:"channel"`
	ChannelAccountID string `bson:"channel_account_id" json:"channel_account_id"`
}

// String renders the key in a stable form usable for lock sharding and as a
// document reference.
func (k UserStateKey) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", k.UserIdentifier, k.BrandID, k.Channel, k.ChannelAccountID)
}

// ValidationState tracks the reply-validation retry window of a user.
type ValidationState struct {
	FailureCount     int    `bson:"failure_count" json:"failure_count"`
	ValidationFailed bool   `bson:"validation_failed" json:"validation_failed"`
	FailureMessage   string `bson:"failure_message,omitempty" json:"failure_message,omitempty"`
}

// UserState is the persistent per-user automation position. Created on first
// inbound message; never destroyed, only toggled in and out of automation.
type UserState struct {
	ID             string          `bson:"_id" json:"id"`
	Key            UserStateKey    `bson:",inline" json:"key"`
	IsInAutomation bool            `bson:"is_in_automation" json:"is_in_automation"`
	CurrentFlowID  string          `bson:"current_flow_id,omitempty" json:"current_flow_id,omitempty"`
	CurrentNodeID  string          `bson:"current_node_id,omitempty" json:"current_node_id,omitempty"`
	DelayNodeData  *Node           `bson:"delay_node_data,omitempty" json:"delay_node_data,omitempty"`
	Validation     ValidationState `bson:"validation" json:"validation"`
	LastEventAt    time.Time       `bson:"last_event_at" json:"last_event_at"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

// ResetValidation clears the retry window.
func (u *UserState) ResetValidation() {
	u.Validation = ValidationState{}
}

// ExitAutomation drops the user out of any active flow.
func (u *UserState) ExitAutomation() {
	u.IsInAutomation = false
	u.CurrentFlowID = ""
	u.CurrentNodeID = ""
	u.DelayNodeData = nil
	u.ResetValidation()
}

// VariableContext holds the @variable store of one user within one flow.
// It persists across flow re-entries for the same user.
type VariableContext struct {
	ID          string            `bson:"_id" json:"id"`
	UserStateID string            `bson:"user_state_id" json:"user_state_id"`
	FlowID      string            `bson:"flow_id" json:"flow_id"`
	Vars        map[string]string `bson:"vars" json:"vars"`
	UpdatedAt   time.Time         `bson:"updated_at" json:"updated_at"`
}

// DelayTimer is the persisted form of a pending delay node. At most one
// unprocessed timer exists per user.
type DelayTimer struct {
	ID          string    `bson:"_id" json:"id"`
	UserStateID string    `bson:"user_state_id" json:"user_state_id"`
	FlowID      string    `bson:"flow_id" json:"flow_id"`
	DelayNodeID string    `bson:"delay_node_id" json:"delay_node_id"`
	StartedAt   time.Time `bson:"started_at" json:"started_at"`
	CompletesAt time.Time `bson:"completes_at" json:"completes_at"`
	Processed   bool      `bson:"processed" json:"processed"`
}

// Transaction is an append-only record written every time a node is entered.
type Transaction struct {
	ID          string    `bson:"_id" json:"id"`
	FlowID      string    `bson:"flow_id" json:"flow_id"`
	NodeID      string    `bson:"node_id" json:"node_id"`
	UserStateID string    `bson:"user_state_id" json:"user_state_id"`
	BrandID     int64     `bson:"brand_id" json:"brand_id"`
	At          time.Time `bson:"at" json:"at"`
}

// NodeTypeDetail is one entry of the node-type catalog: the authoritative
// signal for whether a node kind expects a reply.
type NodeTypeDetail struct {
	NodeType          NodeType `bson:"_id" json:"node_type"`
	Category          string   `bson:"category" json:"category"`
	UserInputRequired bool     `bson:"user_input_required" json:"user_input_required"`
}

// DefaultNodeTypeCatalog seeds the catalog with the built-in node kinds.
func DefaultNodeTypeCatalog() []NodeTypeDetail {
	return []NodeTypeDetail{
		{NodeType: NodeTypeTriggerKeyword, Category: "trigger", UserInputRequired: false},
		{NodeType: NodeTypeTriggerTemplate, Category: "trigger", UserInputRequired: false},
		{NodeType: NodeTypeMessage, Category: "actionable", UserInputRequired: false},
		{NodeType: NodeTypeQuestion, Category: "actionable", UserInputRequired: true},
		{NodeType: NodeTypeButtonQuestion, Category: "actionable", UserInputRequired: true},
		{NodeType: NodeTypeListQuestion, Category: "actionable", UserInputRequired: true},
		{NodeType: NodeTypeCondition, Category: "internal", UserInputRequired: false},
		{NodeType: NodeTypeDelay, Category: "internal", UserInputRequired: false},
	}
}

// InboundEvent is the audit record of one raw webhook and its normalized form,
// written before processing.
type InboundEvent struct {
	ID         string            `bson:"_id" json:"id"`
	BrandID    int64             `bson:"brand_id" json:"brand_id"`
	Channel    string            `bson:"channel" json:"channel"`
	Sender     string            `bson:"sender" json:"sender"`
	Raw        map[string]any    `bson:"raw" json:"raw"`
	Normalized NormalizedMessage `bson:"normalized" json:"normalized"`
	ReceivedAt time.Time         `bson:"received_at" json:"received_at"`
}
