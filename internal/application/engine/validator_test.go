package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
	"github.com/abhishekagnith/xpulse-agentflow-service/testutil"
)

func validatorFlow() *models.Flow {
	return testutil.NewFlow("F1", 1).
		ButtonQuestion("Bq", "Pick a campus",
			&models.AnswerValidation{Fallback: "Please pick one of the options", FailsCount: 2},
			models.ExpectedAnswer{ID: "b1", ExpectedInput: "IIT", NodeResultID: "msg2"},
			models.ExpectedAnswer{ID: "b2", ExpectedInput: "NIT", NodeResultID: "msg3"},
		).
		ButtonQuestion("Bq2", "Pick a plan", nil,
			models.ExpectedAnswer{ID: "p1", ExpectedInput: "Premium", NodeResultID: "msg4"},
		).
		Question("Qn", "What is your name?", "@name").
		Message("msg2", "great").
		Build()
}

func textMsg(text string) *models.NormalizedMessage {
	return &models.NormalizedMessage{Text: text, InteractiveType: models.InteractiveNone}
}

func TestReplyValidator_MatchedByText(t *testing.T) {
	v := NewReplyValidator(testLogger())

	res, err := v.Validate(validatorFlow(), textMsg("iit"), "Bq", false, 0)
	require.NoError(t, err)
	assert.Equal(t, VerdictMatched, res.Status)
	assert.Equal(t, "b1", res.MatchedAnswerID)
}

func TestReplyValidator_MatchedByButtonPayload(t *testing.T) {
	v := NewReplyValidator(testLogger())

	msg := &models.NormalizedMessage{
		InteractiveType:  models.InteractiveButtonReply,
		ButtonPayload:    "b2",
		InteractiveValue: "something else entirely",
	}

	res, err := v.Validate(validatorFlow(), msg, "Bq", false, 0)
	require.NoError(t, err)
	assert.Equal(t, VerdictMatched, res.Status)
	assert.Equal(t, "b2", res.MatchedAnswerID)
}

func TestReplyValidator_FirstMatchWins(t *testing.T) {
	v := NewReplyValidator(testLogger())

	flow := testutil.NewFlow("F1", 1).
		ButtonQuestion("Bq", "q", nil,
			models.ExpectedAnswer{ID: "a1", ExpectedInput: "yes", NodeResultID: "m1"},
			models.ExpectedAnswer{ID: "a2", ExpectedInput: "YES", NodeResultID: "m2"},
		).
		Build()

	res, err := v.Validate(flow, textMsg(" Yes "), "Bq", false, 0)
	require.NoError(t, err)
	assert.Equal(t, "a1", res.MatchedAnswerID)
}

func TestReplyValidator_MatchedOtherNode(t *testing.T) {
	v := NewReplyValidator(testLogger())

	res, err := v.Validate(validatorFlow(), textMsg("Premium"), "Bq", false, 0)
	require.NoError(t, err)
	assert.Equal(t, VerdictMatchedOtherNode, res.Status)
	assert.Equal(t, "Bq2", res.MatchedNodeID)
}

func TestReplyValidator_TextQuestionUsesDefaultEdge(t *testing.T) {
	v := NewReplyValidator(testLogger())

	res, err := v.Validate(validatorFlow(), textMsg("anything at all"), "Qn", true, 0)
	require.NoError(t, err)
	assert.Equal(t, VerdictUseDefaultEdge, res.Status)
}

func TestReplyValidator_MismatchRetryThenExit(t *testing.T) {
	v := NewReplyValidator(testLogger())

	res, err := v.Validate(validatorFlow(), textMsg("foo"), "Bq", false, 0)
	require.NoError(t, err)
	assert.Equal(t, VerdictMismatchRetry, res.Status)
	assert.Equal(t, "Please pick one of the options", res.FallbackMessage)

	// failsCount=2: the second consecutive mismatch exits.
	res, err = v.Validate(validatorFlow(), textMsg("foo"), "Bq", false, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictValidationExit, res.Status)
	assert.Equal(t, "Please pick one of the options", res.FallbackMessage)
}

func TestReplyValidator_NoFailsCountRetriesForever(t *testing.T) {
	v := NewReplyValidator(testLogger())

	res, err := v.Validate(validatorFlow(), textMsg("foo"), "Bq2", false, 99)
	require.NoError(t, err)
	assert.Equal(t, VerdictMismatchRetry, res.Status)
}

func TestReplyValidator_MissingNode(t *testing.T) {
	v := NewReplyValidator(testLogger())

	_, err := v.Validate(validatorFlow(), textMsg("x"), "ghost", false, 0)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}
