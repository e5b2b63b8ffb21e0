package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finclose/finclose/internal/clock"
	"github.com/finclose/finclose/internal/idgen"
	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/runtime/execution"
	notifymem "github.com/finclose/finclose/service/notify/memory"
)

func stubIdentity(t *testing.T) {
	t.Helper()
	previousID := idgen.NewFunc
	previousNow := clock.NowFunc
	idgen.NewFunc = func() string { return "deadbeef-0000-0000-0000-000000000000" }
	clock.NowFunc = func() time.Time {
		return time.Date(2025, 11, 30, 17, 4, 5, 0, time.UTC)
	}
	t.Cleanup(func() {
		idgen.NewFunc = previousID
		clock.NowFunc = previousNow
	})
}

func TestAnyVarianceRequiresApproval(t *testing.T) {
	state := execution.NewState("payroll_reconciliation")
	assert.False(t, AnyVarianceRequiresApproval(state))

	state.Variances = []*finance.Variance{
		{Account: "6100", RequiresApproval: false},
		{Account: "6300", RequiresApproval: true},
	}
	assert.True(t, AnyVarianceRequiresApproval(state))
}

func TestAlwaysRequireApproval(t *testing.T) {
	state := execution.NewState("zip_accrual")
	assert.False(t, AlwaysRequireApproval(state), "nothing produced, nothing to approve")

	state.JournalEntries = []*finance.JournalEntry{{TranDate: "2025-11-30"}}
	assert.True(t, AlwaysRequireApproval(state))
}

func TestDetermineAndRoute(t *testing.T) {
	gate := NewGate("payroll_reconciliation", AnyVarianceRequiresApproval)
	ctx := context.Background()

	state := execution.NewState("payroll_reconciliation")
	state.Variances = []*finance.Variance{{Account: "6300", RequiresApproval: true}}

	messages, err := gate.Determine(ctx, state)
	require.NoError(t, err)
	assert.True(t, state.NeedsApproval)
	require.Len(t, messages, 1)
	assert.Equal(t, "Approval required", messages[0].Content)
	assert.Equal(t, BranchNeedsApproval, gate.Route(state))

	clean := execution.NewState("payroll_reconciliation")
	_, err = gate.Determine(ctx, clean)
	require.NoError(t, err)
	assert.False(t, clean.NeedsApproval)
	assert.Equal(t, BranchAutoApprove, gate.Route(clean))
}

func TestCreateRequest(t *testing.T) {
	stubIdentity(t)
	gate := NewGate("payroll_reconciliation", AnyVarianceRequiresApproval)
	gate.Summarize = func(state *execution.State) map[string]interface{} {
		return map[string]interface{}{"pay_period": "2025-11-30"}
	}
	ctx := context.Background()

	state := execution.NewState("payroll_reconciliation")
	state.Variances = []*finance.Variance{
		{Account: "6100", RequiresApproval: false},
		{Account: "6300", RequiresApproval: true},
	}

	_, err := gate.CreateRequest(ctx, state)
	require.NoError(t, err)

	request := state.Approval
	require.NotNil(t, request)
	assert.Equal(t, "REQ-20251130-170405-deadbeef", request.RequestID)
	assert.Equal(t, "payroll_reconciliation", request.WorkflowType)
	assert.Equal(t, finance.ApprovalPending, request.Status)
	assert.Equal(t, "2025-11-30", request.Data["pay_period"])
	require.Len(t, request.Variances, 1, "only escalated variances are attached")
	assert.Equal(t, "6300", request.Variances[0].Account)
	assert.Equal(t, execution.StatusAwaitingApproval, state.Status)

	event, err := gate.Events().Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, TopicRequestCreated, event.T().Topic)
	assert.Equal(t, request.RequestID, event.T().Request.RequestID)
	require.NoError(t, event.Ack())
}

func TestAutoApprove(t *testing.T) {
	gate := NewGate("payroll_reconciliation", AnyVarianceRequiresApproval)
	state := execution.NewState("payroll_reconciliation")

	_, err := gate.AutoApprove(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, state.Status)

	pending, err := gate.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListPendingAndDecide(t *testing.T) {
	stubIdentity(t)
	gate := NewGate("zip_accrual", AlwaysRequireApproval)
	ctx := context.Background()

	state := execution.NewState("zip_accrual")
	state.JournalEntries = []*finance.JournalEntry{{TranDate: "2025-11-30"}}
	_, err := gate.CreateRequest(ctx, state)
	require.NoError(t, err)

	pending, err := gate.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	requestID := pending[0].RequestID

	decided, err := gate.Decide(ctx, requestID, finance.ApprovalApproved, "controller@acme.test", "looks right")
	require.NoError(t, err)
	assert.Equal(t, finance.ApprovalApproved, decided.Status)
	assert.Equal(t, "controller@acme.test", decided.Approver)
	require.NotNil(t, decided.ApprovedAt)
	assert.Equal(t, "looks right", decided.Comments)

	pending, err = gate.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// second decision on the same request must be refused
	_, err = gate.Decide(ctx, requestID, finance.ApprovalRejected, "cfo@acme.test", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already decided")
}

func TestDecideValidatesInput(t *testing.T) {
	gate := NewGate("zip_accrual", AlwaysRequireApproval)
	ctx := context.Background()

	_, err := gate.Decide(ctx, "REQ-1", "maybe", "controller@acme.test", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decision")

	_, err = gate.Decide(ctx, "REQ-MISSING", finance.ApprovalApproved, "controller@acme.test", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNotify(t *testing.T) {
	notifier := notifymem.New()
	gate := NewGate("payroll_reconciliation", AnyVarianceRequiresApproval,
		WithNotifier(notifier))
	gate.Recipient = "accounting-team@acme.test"
	ctx := context.Background()

	state := execution.NewState("payroll_reconciliation")
	state.Status = execution.StatusAwaitingApproval
	state.Approval = &finance.ApprovalRequest{
		RequestID: "REQ-20251130-170405-deadbeef",
		Variances: []*finance.Variance{{Account: "6300"}},
	}

	messages, err := gate.Notify(ctx, state)
	require.NoError(t, err)
	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, "accounting-team@acme.test", notifier.Sent[0].Recipient)
	assert.Contains(t, notifier.Sent[0].Subject, "requires approval")
	assert.Contains(t, notifier.Sent[0].Body, "REQ-20251130-170405-deadbeef")
	require.Len(t, messages, 1)
}

func TestNotifyAutoApprovedSubject(t *testing.T) {
	notifier := notifymem.New()
	gate := NewGate("zip_accrual", AlwaysRequireApproval, WithNotifier(notifier))
	gate.Recipient = "accounting-team@acme.test"

	state := execution.NewState("zip_accrual")
	state.Status = execution.StatusCompleted

	_, err := gate.Notify(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, notifier.Sent, 1)
	assert.Contains(t, notifier.Sent[0].Subject, "auto-approved")
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	notifier := notifymem.New()
	notifier.Err = errors.New("smtp unreachable")
	gate := NewGate("zip_accrual", AlwaysRequireApproval, WithNotifier(notifier))
	gate.Recipient = "accounting-team@acme.test"

	state := execution.NewState("zip_accrual")
	state.Status = execution.StatusCompleted

	messages, err := gate.Notify(context.Background(), state)
	assert.NoError(t, err, "delivery failure never fails the step")
	assert.Empty(t, messages)
}

func TestNotifyWithoutRecipientIsNoop(t *testing.T) {
	notifier := notifymem.New()
	gate := NewGate("zip_accrual", AlwaysRequireApproval, WithNotifier(notifier))

	state := execution.NewState("zip_accrual")
	messages, err := gate.Notify(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Empty(t, notifier.Sent)
}
