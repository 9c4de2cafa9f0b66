package engine

import (
	"strings"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// ReplyVerdict classifies the outcome of validating a user reply.
type ReplyVerdict string

const (
	// VerdictMatched means an expected answer of the current node matched.
	VerdictMatched ReplyVerdict = "matched"

	// VerdictMatchedOtherNode means the reply matched an expected answer of a
	// different interactive node in the same flow.
	VerdictMatchedOtherNode ReplyVerdict = "matched_other_node"

	// VerdictUseDefaultEdge means the node takes free text; traversal follows
	// the default edge.
	VerdictUseDefaultEdge ReplyVerdict = "use_default_edge"

	// VerdictMismatchRetry means no answer matched and the retry budget is
	// not exhausted.
	VerdictMismatchRetry ReplyVerdict = "mismatch_retry"

	// VerdictValidationExit means the retry budget is exhausted; the user
	// exits automation after one fallback render.
	VerdictValidationExit ReplyVerdict = "validation_exit"
)

// ValidationResult is the verdict returned by the reply validator. The
// validator never mutates user state.
type ValidationResult struct {
	Status          ReplyVerdict
	MatchedAnswerID string
	MatchedNodeID   string
	FallbackMessage string
}

// ReplyValidator matches user replies against expected answers.
type ReplyValidator struct {
	logger *logger.Logger
}

// NewReplyValidator creates a ReplyValidator.
func NewReplyValidator(log *logger.Logger) *ReplyValidator {
	return &ReplyValidator{logger: log}
}

// Validate checks an inbound reply against the current node of the flow.
// isText marks free-text question nodes, which skip answer matching entirely.
// failureCount is the number of mismatches already on record for this node.
func (v *ReplyValidator) Validate(flow *models.Flow, msg *models.NormalizedMessage, currentNodeID string, isText bool, failureCount int) (*ValidationResult, error) {
	node := flow.NodeByID(currentNodeID)
	if node == nil {
		return nil, models.ErrNodeNotFound
	}

	if isText {
		return &ValidationResult{Status: VerdictUseDefaultEdge}, nil
	}

	reply := strings.TrimSpace(msg.GetTextContent())

	for _, ans := range node.ExpectedAnswers {
		if answerMatches(ans, reply, msg.ButtonPayload) {
			return &ValidationResult{Status: VerdictMatched, MatchedAnswerID: ans.ID}, nil
		}
	}

	// Cross-node jump: the reply may belong to another interactive node of
	// the same flow (a user tapping a button from an older message).
	for i := range flow.Nodes {
		other := &flow.Nodes[i]
		if other.ID == node.ID {
			continue
		}
		switch other.Type {
		case models.NodeTypeButtonQuestion, models.NodeTypeListQuestion, models.NodeTypeTriggerTemplate:
		default:
			continue
		}
		for _, ans := range other.ExpectedAnswers {
			if strings.EqualFold(strings.TrimSpace(ans.ExpectedInput), reply) {
				return &ValidationResult{Status: VerdictMatchedOtherNode, MatchedNodeID: other.ID}, nil
			}
		}
	}

	fallback := ""
	failsLimit := 0
	if node.AnswerValidation != nil {
		fallback = node.AnswerValidation.Fallback
		failsLimit = node.AnswerValidation.FailsCount
	}

	// A non-positive failsCount means retry indefinitely.
	if failsLimit > 0 && failureCount+1 >= failsLimit {
		return &ValidationResult{Status: VerdictValidationExit, FallbackMessage: fallback}, nil
	}

	return &ValidationResult{Status: VerdictMismatchRetry, FallbackMessage: fallback}, nil
}

func answerMatches(ans models.ExpectedAnswer, reply, buttonPayload string) bool {
	if strings.EqualFold(strings.TrimSpace(ans.ExpectedInput), reply) {
		return true
	}
	return buttonPayload != "" && buttonPayload == ans.ID
}
