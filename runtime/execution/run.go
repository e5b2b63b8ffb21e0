package execution

import (
	"time"

	"github.com/finclose/finclose/model/finance"
)

// Message is one entry of the append-only run log. Steps return entries for
// the engine to append; they never mutate the log directly.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage builds a log entry.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// State is the mutable record threaded through a pipeline run. Exactly one
// step owns it at a time; runs are strictly sequential so no locking is
// needed. Working collections for both pipeline families live here so a
// single checkpoint payload covers every run shape.
type State struct {
	Pipeline string                 `json:"pipeline,omitempty"`
	Status   Status                 `json:"status"`
	Error    string                 `json:"error,omitempty"`
	Meta     map[string]interface{} `json:"metadata,omitempty"`
	Messages []Message              `json:"messages,omitempty"`

	// reconciliation working set
	SourceAccounts []*finance.AccountBalance `json:"source_accounts,omitempty"`
	TargetAccounts []*finance.AccountBalance `json:"target_accounts,omitempty"`
	ReconRows      []*finance.ReconRow       `json:"reconciliation_results,omitempty"`
	Variances      []*finance.Variance       `json:"variances,omitempty"`

	// accrual working set
	Invoices       []*finance.Invoice            `json:"invoices,omitempty"`
	ExistingBills  []*finance.Bill               `json:"existing_bills,omitempty"`
	Accruals       []*finance.AccrualCalculation `json:"accrual_calculations,omitempty"`
	JournalEntries []*finance.JournalEntry       `json:"journal_entries,omitempty"`

	NeedsApproval bool                     `json:"needs_approval,omitempty"`
	Approval      *finance.ApprovalRequest `json:"approval_request,omitempty"`
}

// NewState creates the initial state for a run.
func NewState(pipeline string, meta ...map[string]interface{}) *State {
	m := map[string]interface{}{}
	if len(meta) > 0 && meta[0] != nil {
		m = meta[0]
	}
	return &State{
		Pipeline: pipeline,
		Status:   StatusPending,
		Meta:     m,
	}
}

// Append adds entries to the message log. Only the engine calls this, on the
// step's behalf, so the log is never overwritten.
func (s *State) Append(messages ...Message) {
	s.Messages = append(s.Messages, messages...)
}

// Fail records a step failure. The run halts; downstream steps never see the
// state.
func (s *State) Fail(err error) {
	s.Status = StatusError
	if err != nil {
		s.Error = err.Error()
	}
}

// Checkpoint associates the state of one run with its thread id. Saved after
// every completed step; whole-value replacement, last writer wins, with one
// run per thread id by contract.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	Pipeline  string    `json:"pipeline,omitempty"`
	Step      string    `json:"step,omitempty"` // last completed step
	Next      string    `json:"next,omitempty"` // node to run on resume
	State     *State    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}
