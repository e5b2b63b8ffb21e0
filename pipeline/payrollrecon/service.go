// Package payrollrecon wires the reconciliation kernel and the approval gate
// into the payroll reconciliation pipeline:
//
//	extract_source_data → fetch_target_data → reconcile_accounts →
//	classify_variances → determine_approval →
//	  needs_approval → create_approval_request → send_notification → end
//	  auto_approve  → auto_approve            → send_notification → end
package payrollrecon

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finclose/finclose/model/graph"
	"github.com/finclose/finclose/pipeline"
	"github.com/finclose/finclose/runtime/engine"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/approval"
	"github.com/finclose/finclose/service/dao"
	"github.com/finclose/finclose/service/notify"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/recon"
	"github.com/finclose/finclose/service/source"
)

// Name identifies the pipeline in checkpoints and approval requests.
const Name = "payroll_reconciliation"

// Step names.
const (
	StepExtractSource    = "extract_source_data"
	StepFetchTarget      = "fetch_target_data"
	StepReconcile        = "reconcile_accounts"
	StepClassify         = "classify_variances"
	StepDetermine        = "determine_approval"
	StepCreateRequest    = "create_approval_request"
	StepAutoApprove      = "auto_approve"
	StepSendNotification = "send_notification"
)

// Option customises the pipeline.
type Option func(*Service)

// WithNotifier sets the notification collaborator.
func WithNotifier(notifier notify.Service) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service is a configured payroll reconciliation pipeline.
type Service struct {
	config   pipeline.Config
	engine   *engine.Engine
	gate     *approval.Gate
	notifier notify.Service
	logger   zerolog.Logger
}

// New validates the configuration and builds the pipeline graph.
func New(config pipeline.Config, src, tgt source.AccountSource, oracleService oracle.Service,
	checkpoints dao.Service[string, execution.Checkpoint], options ...Option) (*Service, error) {

	if err := config.ValidateReconciliation(); err != nil {
		return nil, err
	}
	service := &Service{config: config, logger: zerolog.Nop()}
	for _, option := range options {
		option(service)
	}

	kernel := recon.New(src, tgt, oracleService, config.Threshold(), config.PayPeriod)
	service.gate = approval.NewGate(Name, approval.AnyVarianceRequiresApproval,
		approval.WithNotifier(service.notifier),
		approval.WithLogger(service.logger))
	service.gate.Recipient = config.Recipient
	service.gate.Summarize = summarize

	g := graph.New(Name).
		Register(StepExtractSource, kernel.ExtractSource).
		Register(StepFetchTarget, kernel.FetchTarget).
		Register(StepReconcile, kernel.Reconcile).
		Register(StepClassify, kernel.Classify).
		Register(StepDetermine, service.gate.Determine).
		Register(StepCreateRequest, service.gate.CreateRequest).
		Register(StepAutoApprove, service.gate.AutoApprove).
		Register(StepSendNotification, service.gate.Notify).
		Entry(StepExtractSource).
		Edge(StepExtractSource, StepFetchTarget).
		Edge(StepFetchTarget, StepReconcile).
		Edge(StepReconcile, StepClassify).
		Edge(StepClassify, StepDetermine).
		ConditionalEdge(StepDetermine, service.gate.Route, map[graph.Branch]string{
			approval.BranchNeedsApproval: StepCreateRequest,
			approval.BranchAutoApprove:   StepAutoApprove,
		}).
		Edge(StepCreateRequest, StepSendNotification).
		Edge(StepAutoApprove, StepSendNotification).
		Edge(StepSendNotification, graph.End)

	eng, err := engine.New(g, checkpoints, engine.WithLogger(service.logger))
	if err != nil {
		return nil, err
	}
	service.engine = eng
	return service, nil
}

// Run executes the pipeline under the supplied thread id, resuming from the
// last checkpoint when one exists.
func (s *Service) Run(ctx context.Context, threadID string) (*execution.State, error) {
	if threadID == "" {
		threadID = s.config.ThreadID
	}
	state := execution.NewState(Name, s.config.Meta())
	return s.engine.Run(ctx, state, threadID)
}

// Retry resumes a run halted in status=error from the failed step.
func (s *Service) Retry(ctx context.Context, threadID string) (*execution.State, error) {
	return s.engine.Retry(ctx, threadID)
}

// Gate exposes the approval gate for decision handling and event consumers.
func (s *Service) Gate() *approval.Gate { return s.gate }

func summarize(state *execution.State) map[string]interface{} {
	matched := 0
	for _, row := range state.ReconRows {
		if row.Matched {
			matched++
		}
	}
	material := 0
	for _, variance := range state.Variances {
		if variance.IsMaterial {
			material++
		}
	}
	return map[string]interface{}{
		"pay_period":         state.Meta["pay_period"],
		"total_accounts":     len(state.ReconRows),
		"matched_accounts":   matched,
		"material_variances": material,
	}
}
