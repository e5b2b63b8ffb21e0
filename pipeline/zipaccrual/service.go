// Package zipaccrual wires the accrual kernel and the approval gate into the
// invoice accrual pipeline:
//
//	extract_invoices → fetch_existing_bills → identify_service_periods →
//	calculate_accruals → generate_journal_entries → validate_entries →
//	determine_approval →
//	  needs_approval → create_approval_request → send_notification → end
//	  auto_approve  → auto_approve            → send_notification → end
package zipaccrual

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finclose/finclose/model/graph"
	"github.com/finclose/finclose/pipeline"
	"github.com/finclose/finclose/runtime/engine"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/accrual"
	"github.com/finclose/finclose/service/approval"
	"github.com/finclose/finclose/service/dao"
	"github.com/finclose/finclose/service/notify"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/source"
)

// Name identifies the pipeline in checkpoints and approval requests.
const Name = "zip_accrual"

// Step names.
const (
	StepExtractInvoices  = "extract_invoices"
	StepFetchBills       = "fetch_existing_bills"
	StepIdentifyPeriods  = "identify_service_periods"
	StepCalculate        = "calculate_accruals"
	StepGenerate         = "generate_journal_entries"
	StepValidate         = "validate_entries"
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

// Service is a configured invoice accrual pipeline.
type Service struct {
	config   pipeline.Config
	engine   *engine.Engine
	gate     *approval.Gate
	notifier notify.Service
	logger   zerolog.Logger
}

// New validates the configuration and builds the pipeline graph.
func New(config pipeline.Config, invoices source.InvoiceSource, bills source.BillSource,
	oracleService oracle.Service, checkpoints dao.Service[string, execution.Checkpoint],
	options ...Option) (*Service, error) {

	if err := config.ValidateAccrual(); err != nil {
		return nil, err
	}
	service := &Service{config: config, logger: zerolog.Nop()}
	for _, option := range options {
		option(service)
	}

	kernel := &accrual.Service{
		Invoices:         invoices,
		Bills:            bills,
		Oracle:           oracleService,
		CloseDate:        config.CloseDate,
		PeriodStart:      config.PeriodStart,
		Subsidiary:       config.SubsidiaryID,
		SubsidiaryName:   config.SubsidiaryName,
		LiabilityAccount: config.LiabilityAccount(),
	}
	service.gate = approval.NewGate(Name, approval.AlwaysRequireApproval,
		approval.WithNotifier(service.notifier),
		approval.WithLogger(service.logger))
	service.gate.Recipient = config.Recipient
	service.gate.Summarize = summarize

	g := graph.New(Name).
		Register(StepExtractInvoices, kernel.ExtractInvoices).
		Register(StepFetchBills, kernel.FetchBills).
		Register(StepIdentifyPeriods, kernel.IdentifyServicePeriods).
		Register(StepCalculate, kernel.Calculate).
		Register(StepGenerate, kernel.Generate).
		Register(StepValidate, kernel.Validate).
		Register(StepDetermine, service.gate.Determine).
		Register(StepCreateRequest, service.gate.CreateRequest).
		Register(StepAutoApprove, service.gate.AutoApprove).
		Register(StepSendNotification, service.gate.Notify).
		Entry(StepExtractInvoices).
		Edge(StepExtractInvoices, StepFetchBills).
		Edge(StepFetchBills, StepIdentifyPeriods).
		Edge(StepIdentifyPeriods, StepCalculate).
		Edge(StepCalculate, StepGenerate).
		Edge(StepGenerate, StepValidate).
		Edge(StepValidate, StepDetermine).
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
	var total float64
	if len(state.JournalEntries) > 0 {
		total = state.JournalEntries[0].TotalDebit
	}
	return map[string]interface{}{
		"close_date":    state.Meta["close_date"],
		"invoice_count": len(state.Invoices),
		"total_accrual": total,
	}
}
