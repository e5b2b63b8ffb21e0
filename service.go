package finclose

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finclose/finclose/pipeline"
	"github.com/finclose/finclose/pipeline/payrollrecon"
	"github.com/finclose/finclose/pipeline/zipaccrual"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
	checkpointmem "github.com/finclose/finclose/service/dao/checkpoint/memory"
	"github.com/finclose/finclose/service/meta"
	"github.com/finclose/finclose/service/notify"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/oracle/rules"
	"github.com/finclose/finclose/service/source"
)

// Service is the entry point of the module: it carries the collaborators
// shared across pipelines (checkpoint store, oracle, notifier, logger) and
// builds configured pipeline instances from run configs.
type Service struct {
	checkpoints dao.Service[string, execution.Checkpoint]
	oracle      oracle.Service
	notifier    notify.Service
	logger      zerolog.Logger
	metaBaseURL string
	metaService *meta.Service
}

// New creates the service with in-memory checkpoints and the rule-based
// oracle unless overridden.
func New(options ...Option) *Service {
	service := &Service{
		checkpoints: checkpointmem.New(),
		oracle:      rules.New(),
		logger:      zerolog.Nop(),
	}
	for _, option := range options {
		option(service)
	}
	service.metaService = meta.New(service.metaBaseURL)
	return service
}

// LoadConfig reads a pipeline run config from a YAML document.
func (s *Service) LoadConfig(ctx context.Context, location string) (pipeline.Config, error) {
	config := pipeline.Config{}
	if err := s.metaService.Load(ctx, location, &config); err != nil {
		return config, err
	}
	return config, nil
}

// PayrollReconciliation builds the payroll reconciliation pipeline over the
// supplied payroll and ledger sources.
func (s *Service) PayrollReconciliation(config pipeline.Config, src, tgt source.AccountSource) (*payrollrecon.Service, error) {
	return payrollrecon.New(config, src, tgt, s.oracle, s.checkpoints,
		payrollrecon.WithNotifier(s.notifier),
		payrollrecon.WithLogger(s.logger))
}

// ZIPAccrual builds the invoice accrual pipeline over the supplied invoice
// and bill sources.
func (s *Service) ZIPAccrual(config pipeline.Config, invoices source.InvoiceSource, bills source.BillSource) (*zipaccrual.Service, error) {
	return zipaccrual.New(config, invoices, bills, s.oracle, s.checkpoints,
		zipaccrual.WithNotifier(s.notifier),
		zipaccrual.WithLogger(s.logger))
}
