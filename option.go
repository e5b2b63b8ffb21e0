package finclose

import (
	"github.com/rs/zerolog"

	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
	"github.com/finclose/finclose/service/notify"
	"github.com/finclose/finclose/service/oracle"
)

// Option customises the top-level service.
type Option func(s *Service)

// WithCheckpointDAO sets the checkpoint store shared by every pipeline; the
// default is in-memory.
func WithCheckpointDAO(checkpoints dao.Service[string, execution.Checkpoint]) Option {
	return func(s *Service) { s.checkpoints = checkpoints }
}

// WithOracle sets the classification oracle; the default is the rule-based
// implementation.
func WithOracle(oracleService oracle.Service) Option {
	return func(s *Service) { s.oracle = oracleService }
}

// WithNotifier sets the notification collaborator; without one, pipelines
// skip the notification step silently.
func WithNotifier(notifier notify.Service) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithLogger sets the logger used by engines and gates.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetaBaseURL roots run-config loading at the given URL.
func WithMetaBaseURL(baseURL string) Option {
	return func(s *Service) { s.metaBaseURL = baseURL }
}
