// Package approval converts kernel output into a disposition: either an
// auto-approval or a pending request routed to a human approver. It also owns
// the request store and the decision flow an external approver drives.
package approval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finclose/finclose/internal/clock"
	"github.com/finclose/finclose/internal/idgen"
	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/graph"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
	"github.com/finclose/finclose/service/dao/store"
	"github.com/finclose/finclose/service/messaging"
	qmem "github.com/finclose/finclose/service/messaging/memory"
	"github.com/finclose/finclose/service/notify"
)

// Branch keys consumed by the engine's edge table after the determine step.
const (
	BranchNeedsApproval graph.Branch = "needs_approval"
	BranchAutoApprove   graph.Branch = "auto_approve"
)

// Event topics published on the gate's queue.
const (
	TopicRequestCreated   = "approval.request.created"
	TopicDecisionRecorded = "approval.decision.recorded"
)

// Event is the envelope published for request and decision activity.
type Event struct {
	Topic   string
	Request *finance.ApprovalRequest
}

// Policy decides whether a run needs human review.
type Policy func(state *execution.State) bool

// AnyVarianceRequiresApproval needs review iff any variance was escalated.
func AnyVarianceRequiresApproval(state *execution.State) bool {
	for _, variance := range state.Variances {
		if variance.RequiresApproval {
			return true
		}
	}
	return false
}

// AlwaysRequireApproval routes every run with output to a human; runs that
// produced nothing to post auto-approve.
func AlwaysRequireApproval(state *execution.State) bool {
	return len(state.JournalEntries) > 0
}

// Gate is the approval gate for one pipeline.
type Gate struct {
	WorkflowType string
	Recipient    string
	Policy       Policy
	// Summarize builds the pipeline-specific data block of a request.
	Summarize func(state *execution.State) map[string]interface{}

	requests dao.Service[string, finance.ApprovalRequest]
	events   messaging.Queue[Event]
	notifier notify.Service
	logger   zerolog.Logger
}

// Option customises a Gate.
type Option func(*Gate)

// WithRequestDAO replaces the default in-memory request store.
func WithRequestDAO(requests dao.Service[string, finance.ApprovalRequest]) Option {
	return func(g *Gate) { g.requests = requests }
}

// WithNotifier sets the notification collaborator; the default records
// nothing and never fails.
func WithNotifier(notifier notify.Service) Option {
	return func(g *Gate) { g.notifier = notifier }
}

// WithLogger sets the gate logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithQueue replaces the default in-memory event queue.
func WithQueue(events messaging.Queue[Event]) Option {
	return func(g *Gate) { g.events = events }
}

func requestKey(r *finance.ApprovalRequest) string { return r.RequestID }

// NewGate creates an approval gate.
func NewGate(workflowType string, policy Policy, options ...Option) *Gate {
	gate := &Gate{
		WorkflowType: workflowType,
		Policy:       policy,
		requests:     store.NewMemoryStore[string, finance.ApprovalRequest](requestKey),
		events:       qmem.NewQueue[Event](qmem.DefaultConfig()),
		logger:       zerolog.Nop(),
	}
	for _, option := range options {
		option(gate)
	}
	return gate
}

// Events exposes the gate's event queue for outer surfaces.
func (g *Gate) Events() messaging.Queue[Event] { return g.events }

// Determine records whether the run needs human review.
func (g *Gate) Determine(_ context.Context, state *execution.State) ([]execution.Message, error) {
	state.NeedsApproval = g.Policy(state)
	content := "Approval not required"
	if state.NeedsApproval {
		content = "Approval required"
	}
	return []execution.Message{execution.NewMessage("system", content)}, nil
}

// Route is the branch selector for the determine step.
func (g *Gate) Route(state *execution.State) graph.Branch {
	if state.NeedsApproval {
		return BranchNeedsApproval
	}
	return BranchAutoApprove
}

// CreateRequest builds the ApprovalRequest, persists it, publishes the
// created event and parks the run in awaiting_approval.
func (g *Gate) CreateRequest(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	var data map[string]interface{}
	if g.Summarize != nil {
		data = g.Summarize(state)
	}
	var escalated []*finance.Variance
	for _, variance := range state.Variances {
		if variance.RequiresApproval {
			escalated = append(escalated, variance)
		}
	}
	request := &finance.ApprovalRequest{
		RequestID:      idgen.NewRequestID(),
		WorkflowType:   g.WorkflowType,
		CreatedAt:      clock.Now(),
		Data:           data,
		Variances:      escalated,
		JournalEntries: state.JournalEntries,
		Status:         finance.ApprovalPending,
	}
	if err := g.requests.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to store approval request: %w", err)
	}
	if err := g.events.Publish(ctx, &Event{Topic: TopicRequestCreated, Request: request}); err != nil {
		// observers are best-effort; the request itself is already stored
		g.logger.Warn().Str("request", request.RequestID).Err(err).Msg("failed to publish approval event")
	}

	state.Approval = request
	state.Status = execution.StatusAwaitingApproval
	return []execution.Message{
		execution.NewMessage("system", fmt.Sprintf("Approval request created: %s", request.RequestID)),
	}, nil
}

// AutoApprove completes the run without creating a request.
func (g *Gate) AutoApprove(_ context.Context, state *execution.State) ([]execution.Message, error) {
	state.Status = execution.StatusCompleted
	return []execution.Message{
		execution.NewMessage("system", "Run auto-approved - all variances immaterial or explained"),
	}, nil
}

// Notify sends the closing notification for the run. Delivery failures are
// logged and swallowed; they never change the run status.
func (g *Gate) Notify(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	if g.notifier == nil || g.Recipient == "" {
		return nil, nil
	}
	var subject, body string
	if state.Status == execution.StatusAwaitingApproval && state.Approval != nil {
		subject = fmt.Sprintf("%s requires approval - %s", g.WorkflowType, state.Approval.RequestID)
		body = fmt.Sprintf("Run of %s produced items that require review.\n\nEscalated variances: %d\nJournal entries: %d\n\nPlease review request %s.",
			g.WorkflowType, len(state.Approval.Variances), len(state.Approval.JournalEntries), state.Approval.RequestID)
	} else {
		subject = fmt.Sprintf("%s complete - auto-approved", g.WorkflowType)
		body = fmt.Sprintf("Run of %s completed with no items requiring review.\n\nNo action required.", g.WorkflowType)
	}
	if err := g.notifier.Send(ctx, g.Recipient, subject, body); err != nil {
		g.logger.Warn().Str("recipient", g.Recipient).Err(err).Msg("notification failed, continuing")
		return nil, nil
	}
	return []execution.Message{
		execution.NewMessage("system", fmt.Sprintf("Notification sent to %s", g.Recipient)),
	}, nil
}

// ListPending returns every request still awaiting a decision.
func (g *Gate) ListPending(ctx context.Context) ([]*finance.ApprovalRequest, error) {
	all, err := g.requests.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*finance.ApprovalRequest, 0, len(all))
	for _, request := range all {
		if request.Status == finance.ApprovalPending {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

// Decide records the approver's decision exactly once. The transition back
// into the pipeline for approved runs belongs to an external collaborator.
func (g *Gate) Decide(ctx context.Context, requestID string, status finance.ApprovalStatus, approver, comments string) (*finance.ApprovalRequest, error) {
	switch status {
	case finance.ApprovalApproved, finance.ApprovalRejected, finance.ApprovalNeedsInvestigation:
	default:
		return nil, fmt.Errorf("invalid decision %q", status)
	}
	request, err := g.requests.Load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("approval request %s not found", requestID)
	}
	if request.Status != finance.ApprovalPending {
		return nil, fmt.Errorf("approval request %s already decided: %s", requestID, request.Status)
	}
	now := clock.Now()
	request.Status = status
	request.Approver = approver
	request.ApprovedAt = &now
	request.Comments = comments
	if err := g.requests.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to store decision: %w", err)
	}
	if err := g.events.Publish(ctx, &Event{Topic: TopicDecisionRecorded, Request: request}); err != nil {
		g.logger.Warn().Str("request", request.RequestID).Err(err).Msg("failed to publish decision event")
	}
	return request, nil
}
