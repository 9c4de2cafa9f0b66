package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
	"github.com/abhishekagnith/xpulse-agentflow-service/testutil"
)

// captureRenderer records every outbound intent.
type captureRenderer struct {
	mu      sync.Mutex
	intents []OutboundIntent
	fail    bool
}

func (r *captureRenderer) Render(_ context.Context, intent OutboundIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	if r.fail {
		return errors.New("connector unreachable")
	}
	return nil
}

func (r *captureRenderer) nodeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.intents))
	for i, in := range r.intents {
		out[i] = in.NodeID
	}
	return out
}

func (r *captureRenderer) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, in := range r.intents {
		var parts []string
		for _, reply := range in.Replies {
			parts = append(parts, reply.Text)
		}
		out = append(out, strings.Join(parts, "|"))
	}
	return out
}

// keywordMatcher is a minimal TriggerMatcher over the flow store.
type keywordMatcher struct {
	flows *testutil.FlowStore
}

func (m *keywordMatcher) Match(ctx context.Context, brandID int64, _ string, msg *models.NormalizedMessage) (*TriggerMatch, error) {
	keyword := strings.ToLower(strings.TrimSpace(msg.GetTextContent()))
	flows, err := m.flows.FindPublishedByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	for _, flow := range flows {
		for i := range flow.Nodes {
			node := &flow.Nodes[i]
			if node.Type != models.NodeTypeTriggerKeyword {
				continue
			}
			for _, kw := range node.TriggerKeywords {
				if strings.EqualFold(strings.TrimSpace(kw), keyword) {
					return &TriggerMatch{FlowID: flow.ID, TriggerNodeID: node.ID}, nil
				}
			}
		}
	}
	return nil, nil
}

type harness struct {
	flows    *testutil.FlowStore
	users    *testutil.UserStore
	vars     *testutil.VarStore
	txns     *testutil.TxnStore
	delays   *testutil.DelayStore
	renderer *captureRenderer
	service  *UserStateService
}

func newHarness(t *testing.T, flows ...*models.Flow) *harness {
	t.Helper()

	h := &harness{
		flows:    testutil.NewFlowStore(),
		users:    testutil.NewUserStore(),
		vars:     testutil.NewVarStore(),
		txns:     testutil.NewTxnStore(),
		delays:   testutil.NewDelayStore(),
		renderer: &captureRenderer{},
	}
	for _, f := range flows {
		h.flows.Put(f)
	}

	log := testLogger()
	varStore := NewVariableStore(h.vars)
	processor := NewInternalNodeProcessor(NewConditionEvaluator(log), log)
	identifier := NewNodeIdentifier(h.txns, varStore, processor, h.renderer, log)

	h.service = NewUserStateService(UserStateServiceConfig{
		Users:      h.users,
		Flows:      h.flows,
		Delays:     h.delays,
		Catalog:    testutil.NewCatalogStore(),
		Events:     testutil.NewEventStore(),
		Matcher:    &keywordMatcher{flows: h.flows},
		Validator:  NewReplyValidator(log),
		Identifier: identifier,
		Logger:     log,
	})
	return h
}

func whatsappEvent(text string) (models.EventMetadata, models.NormalizedMessage) {
	metadata := models.EventMetadata{
		Sender:           "919876543210",
		BrandID:          1,
		Channel:          "whatsapp",
		ChannelAccountID: "acc-1",
		MessageType:      "text",
	}
	msg := models.NormalizedMessage{Text: text, InteractiveType: models.InteractiveNone}
	return metadata, msg
}

func (h *harness) userState(t *testing.T) *models.UserState {
	t.Helper()
	metadata, _ := whatsappEvent("")
	user, err := h.users.FindByKey(context.Background(), metadata.UserStateKey())
	require.NoError(t, err)
	return user
}

// seedUser installs a user already inside automation at the given node.
func (h *harness) seedUser(t *testing.T, flowID, nodeID string) *models.UserState {
	t.Helper()
	metadata, _ := whatsappEvent("")
	user := &models.UserState{
		ID:             "user-1",
		Key:            metadata.UserStateKey(),
		IsInAutomation: true,
		CurrentFlowID:  flowID,
		CurrentNodeID:  nodeID,
	}
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

// S1: a keyword trigger creates the user, renders the message chain and, with
// a terminal message, exits automation in the same event.
func TestProcessEvent_NewTrigger_TerminalMessage(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "learn").
		Message("M", "hi").
		Edge("T", "M").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("learn")
	result, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, result.Status)

	assert.Equal(t, []string{"M"}, h.renderer.nodeIDs())
	assert.Equal(t, []string{"hi"}, h.renderer.texts())
	assert.Equal(t, []string{"T", "M"}, h.txns.NodeIDs())

	user := h.userState(t)
	assert.False(t, user.IsInAutomation)
	assert.Empty(t, user.CurrentFlowID)
	assert.Empty(t, user.CurrentNodeID)
}

func TestProcessEvent_NewTrigger_StopsAtQuestion(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "learn").
		Message("M", "hi").
		Question("Q", "your name?", "@name").
		Edge("T", "M").
		Edge("M", "Q").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("learn")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"M", "Q"}, h.renderer.nodeIDs())

	user := h.userState(t)
	assert.True(t, user.IsInAutomation)
	assert.Equal(t, "F", user.CurrentFlowID)
	assert.Equal(t, "Q", user.CurrentNodeID)
}

func TestProcessEvent_NoTriggerMatch_Dropped(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "learn").
		Message("M", "hi").
		Edge("T", "M").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("unrelated")
	result, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDropped, result.Status)

	user := h.userState(t)
	assert.False(t, user.IsInAutomation)
	assert.Empty(t, h.renderer.nodeIDs())
}

// S2: a button answer jumps to its result node through the answer id.
func TestProcessEvent_ButtonMatch(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		ButtonQuestion("Bq", "pick", nil,
			models.ExpectedAnswer{ID: "b1", ExpectedInput: "IIT", NodeResultID: "msg2"},
		).
		Message("msg2", "great choice").
		Build()
	h := newHarness(t, flow)
	h.seedUser(t, "F", "Bq")

	metadata, msg := whatsappEvent("IIT")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"msg2"}, h.renderer.nodeIDs())

	// msg2 is terminal, so the flow completes.
	user := h.userState(t)
	assert.False(t, user.IsInAutomation)
	assert.Empty(t, user.CurrentNodeID)
}

// S3: two mismatches against failsCount=2 retry once, then exit.
func TestProcessEvent_MismatchRetryThenExit(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		ButtonQuestion("Bq", "pick",
			&models.AnswerValidation{Fallback: "please pick one", FailsCount: 2},
			models.ExpectedAnswer{ID: "b1", ExpectedInput: "IIT", NodeResultID: "msg2"},
		).
		Message("msg2", "great").
		Build()
	h := newHarness(t, flow)
	h.seedUser(t, "F", "Bq")

	metadata, msg := whatsappEvent("foo")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	user := h.userState(t)
	assert.True(t, user.IsInAutomation)
	assert.Equal(t, "Bq", user.CurrentNodeID)
	assert.Equal(t, 1, user.Validation.FailureCount)
	assert.True(t, user.Validation.ValidationFailed)

	// The node re-renders with the fallback prepended.
	require.Len(t, h.renderer.intents, 1)
	assert.Equal(t, "Bq", h.renderer.intents[0].NodeID)
	require.NotEmpty(t, h.renderer.intents[0].Replies)
	assert.Equal(t, "please pick one", h.renderer.intents[0].Replies[0].Text)

	// Second mismatch exhausts the budget.
	_, err = h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	user = h.userState(t)
	assert.False(t, user.IsInAutomation)
	assert.Zero(t, user.Validation.FailureCount)
	assert.False(t, user.Validation.ValidationFailed)
}

// A matched reply resets the failure counter.
func TestProcessEvent_MatchResetsFailureCount(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		ButtonQuestion("Bq", "pick",
			&models.AnswerValidation{Fallback: "please pick one", FailsCount: 5},
			models.ExpectedAnswer{ID: "b1", ExpectedInput: "IIT", NodeResultID: "msg2"},
		).
		Message("msg2", "great").
		Build()
	h := newHarness(t, flow)
	h.seedUser(t, "F", "Bq")

	metadata, _ := whatsappEvent("")
	_, err := h.service.ProcessEvent(context.Background(), metadata, models.NormalizedMessage{Text: "foo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.userState(t).Validation.FailureCount)

	_, err = h.service.ProcessEvent(context.Background(), metadata, models.NormalizedMessage{Text: "IIT"}, nil)
	require.NoError(t, err)
	assert.Zero(t, h.userState(t).Validation.FailureCount)
}

// S4: a reply matching another interactive node of the flow jumps there.
func TestProcessEvent_CrossNodeMatch(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		Node(models.Node{
			ID:   "Lq",
			Type: models.NodeTypeListQuestion,
			ExpectedAnswers: []models.ExpectedAnswer{
				{ID: "l1", ExpectedInput: "Basic", NodeResultID: "mb"},
			},
		}).
		ButtonQuestion("Bq2", "plan?", nil,
			models.ExpectedAnswer{ID: "p1", ExpectedInput: "Premium", NodeResultID: "mp"},
		).
		Message("mb", "basic it is").
		Message("mp", "premium it is").
		Build()
	h := newHarness(t, flow)
	h.seedUser(t, "F", "Lq")

	metadata, msg := whatsappEvent("Premium")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	// Bq2 itself is rendered and becomes the current node.
	assert.Equal(t, []string{"Bq2"}, h.renderer.nodeIDs())

	user := h.userState(t)
	assert.True(t, user.IsInAutomation)
	assert.Equal(t, "Bq2", user.CurrentNodeID)
}

// A free-text question consumes any reply, stores it, and follows the edge.
func TestProcessEvent_TextQuestionStoresVariable(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		Question("Q", "your name?", "@name").
		Message("M", "Hi @name").
		Edge("Q", "M").
		Build()
	h := newHarness(t, flow)
	user := h.seedUser(t, "F", "Q")

	metadata, msg := whatsappEvent("John")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	// The reply landed in the variable context and interpolates downstream.
	val, err := h.vars.Get(context.Background(), user.ID, "F", "name")
	require.NoError(t, err)
	assert.Equal(t, "John", val)
	assert.Equal(t, []string{"Hi John"}, h.renderer.texts())
}

// S5: delay round-trip.
func TestProcessEvent_DelayRoundTrip(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "wait").
		Message("M1", "hold on").
		Delay("D", 1, models.DelayUnitMinutes, "M2").
		Message("M2", "done waiting").
		Edge("T", "M1").
		Edge("M1", "D").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("wait")
	result, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, result.Status)

	user := h.userState(t)
	assert.True(t, user.IsInAutomation)
	require.NotNil(t, user.DelayNodeData)
	assert.Equal(t, "D", user.DelayNodeData.ID)
	assert.Equal(t, "M1", user.CurrentNodeID)
	assert.Equal(t, []string{"M1"}, h.renderer.nodeIDs())

	// Invariant: pending delay data implies exactly one unprocessed timer.
	assert.Equal(t, 1, h.delays.Unprocessed())
	timer, err := h.delays.FindUnprocessedByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, timer)
	expected := time.Now().UTC().Add(time.Minute)
	assert.WithinDuration(t, expected, timer.CompletesAt, 5*time.Second)

	// The scheduler claims the timer and injects the synthetic event.
	claimed, err := h.delays.ClaimExpired(context.Background(), time.Now().UTC().Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	result, err = h.service.ProcessEvent(context.Background(),
		models.EventMetadata{Channel: models.ChannelSystem, MessageType: models.MessageTypeDelayComplete},
		models.NormalizedMessage{InteractiveType: models.InteractiveNone},
		map[string]any{"user_state_id": user.ID},
	)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, result.Status)

	assert.Equal(t, []string{"M1", "M2"}, h.renderer.nodeIDs())

	user = h.userState(t)
	assert.Nil(t, user.DelayNodeData)
	assert.False(t, user.IsInAutomation)
	assert.Zero(t, h.delays.Unprocessed())
}

// A real reply while a timer is pending is ignored; the timer fires later.
func TestProcessEvent_ReplyDuringDelayIgnored(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "wait").
		Message("M1", "hold on").
		Delay("D", 1, models.DelayUnitHours, "M2").
		Message("M2", "done").
		Edge("T", "M1").
		Edge("M1", "D").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("wait")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	metadata, msg = whatsappEvent("hello?")
	result, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDropped, result.Status)

	// Still exactly one timer, still parked at the delay.
	assert.Equal(t, 1, h.delays.Unprocessed())
	require.NotNil(t, h.userState(t).DelayNodeData)
}

// A stale delay_complete after state moved on is a no-op.
func TestProcessEvent_StaleDelayCompleteDropped(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		Message("M", "hi").
		Build()
	h := newHarness(t, flow)
	user := h.seedUser(t, "F", "M")

	result, err := h.service.ProcessEvent(context.Background(),
		models.EventMetadata{Channel: models.ChannelSystem, MessageType: models.MessageTypeDelayComplete},
		models.NormalizedMessage{},
		map[string]any{"user_state_id": user.ID},
	)
	require.NoError(t, err)
	assert.Equal(t, StatusDropped, result.Status)
	assert.Empty(t, h.renderer.nodeIDs())
}

// S6: a condition node branches on the variable context without rendering.
func TestProcessEvent_ConditionBranch(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "start").
		Condition("C", models.OperatorNone, "Myes", "Mno",
			models.Condition{ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "John"},
		).
		Message("Myes", "hello John").
		Message("Mno", "who are you?").
		Edge("T", "C").
		Build()
	h := newHarness(t, flow)

	// Returning user with context from an earlier flow run.
	metadata, msg := whatsappEvent("start")
	user := &models.UserState{ID: "user-1", Key: metadata.UserStateKey()}
	require.NoError(t, h.users.Create(context.Background(), user))
	h.vars.Preset("user-1", "F", "name", "John")

	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Myes"}, h.renderer.nodeIDs())
	assert.False(t, h.userState(t).IsInAutomation)
}

func TestProcessEvent_ConditionFalseBranch(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "start").
		Condition("C", models.OperatorNone, "Myes", "Mno",
			models.Condition{ID: "c1", CondType: models.CondEqual, Variable: "@name", Value: "John"},
		).
		Message("Myes", "hello John").
		Message("Mno", "who are you?").
		Edge("T", "C").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("start")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Mno"}, h.renderer.nodeIDs())
}

// Render failures are logged; state still advances.
func TestProcessEvent_RenderFailureStillAdvances(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "learn").
		Message("M", "hi").
		Question("Q", "name?", "@name").
		Edge("T", "M").
		Edge("M", "Q").
		Build()
	h := newHarness(t, flow)
	h.renderer.fail = true

	metadata, msg := whatsappEvent("learn")
	result, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, result.Status)
	assert.Equal(t, "Q", h.userState(t).CurrentNodeID)
}

// Invariant 1: in automation implies a current flow.
func TestProcessEvent_AutomationImpliesFlow(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		KeywordTrigger("T", "learn").
		Question("Q", "name?", "@name").
		Edge("T", "Q").
		Build()
	h := newHarness(t, flow)

	metadata, msg := whatsappEvent("learn")
	_, err := h.service.ProcessEvent(context.Background(), metadata, msg, nil)
	require.NoError(t, err)

	user := h.userState(t)
	if user.IsInAutomation {
		assert.NotEmpty(t, user.CurrentFlowID)
	}
}

// Concurrent events for the same user never interleave state writes.
func TestProcessEvent_ConcurrentSameUser(t *testing.T) {
	flow := testutil.NewFlow("F", 1).
		ButtonQuestion("Bq", "pick",
			&models.AnswerValidation{Fallback: "nope", FailsCount: 100},
			models.ExpectedAnswer{ID: "b1", ExpectedInput: "IIT", NodeResultID: "msg2"},
		).
		Message("msg2", "ok").
		Build()
	h := newHarness(t, flow)
	h.seedUser(t, "F", "Bq")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metadata, msg := whatsappEvent("wrong answer")
			_, _ = h.service.ProcessEvent(context.Background(), metadata, msg, nil)
		}()
	}
	wg.Wait()

	// With per-user serialization the counter is exactly n.
	assert.Equal(t, n, h.userState(t).Validation.FailureCount)
}
