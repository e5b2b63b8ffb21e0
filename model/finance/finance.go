package finance

import (
	"fmt"
	"math"
	"time"
)

// BalanceTolerance is the maximum absolute difference between total debit and
// total credit for a journal entry to be considered balanced. Amounts are
// currency values with cent granularity.
const BalanceTolerance = 0.01

// DefaultMaterialityThreshold is the minimum absolute variance amount that
// triggers classification and escalation unless overridden per run.
const DefaultMaterialityThreshold = 1000.0

// Classification labels assigned to reconciliation variances.
type Classification string

const (
	ClassificationTiming          Classification = "timing"
	ClassificationTrueVariance    Classification = "true_variance"
	ClassificationKnownAdjustment Classification = "known_adjustment"
	ClassificationImmaterial      Classification = "immaterial"
)

// ApprovalStatus represents the human decision lifecycle of an approval
// request. The transition out of pending is owned by an external approver.
type ApprovalStatus string

const (
	ApprovalPending            ApprovalStatus = "pending"
	ApprovalApproved           ApprovalStatus = "approved"
	ApprovalRejected           ApprovalStatus = "rejected"
	ApprovalNeedsInvestigation ApprovalStatus = "needs_investigation"
)

// Round2 rounds a currency amount to cent precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsMaterial reports whether an absolute variance amount meets the threshold.
// The boundary is inclusive: a variance exactly at the threshold is material.
func IsMaterial(amount, threshold float64) bool {
	return math.Abs(amount) >= threshold
}

// FormatCurrency renders an amount the way approvers see it in notifications.
func FormatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// JournalEntryLine is a single debit or credit posting. Exactly one of Debit
// and Credit must be strictly positive; the other must be zero.
type JournalEntryLine struct {
	Account     int     `json:"account"`
	AccountName string  `json:"account_name,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Department  int     `json:"department,omitempty"`
	Class       int     `json:"class,omitempty"`
	Location    int     `json:"location,omitempty"`
	Memo        string  `json:"memo,omitempty"`
	Entity      int     `json:"entity,omitempty"`
}

// Violations returns every invariant the line breaks, empty when valid.
func (l *JournalEntryLine) Violations() []string {
	var out []string
	if l.Account == 0 {
		out = append(out, "line has no account")
	}
	if l.Debit < 0 || l.Credit < 0 {
		out = append(out, fmt.Sprintf("line %d has a negative amount", l.Account))
	}
	if l.Debit > 0 && l.Credit > 0 {
		out = append(out, fmt.Sprintf("line %d has both debit and credit", l.Account))
	}
	if l.Debit == 0 && l.Credit == 0 {
		out = append(out, fmt.Sprintf("line %d has no amount", l.Account))
	}
	return out
}

// JournalEntry is a balanced set of ledger lines recording one accounting
// event. TotalDebit and TotalCredit are derived from the lines, never set
// independently.
type JournalEntry struct {
	Subsidiary     int                 `json:"subsidiary"`
	SubsidiaryName string              `json:"subsidiary_name,omitempty"`
	TranDate       string              `json:"trandate"`
	Memo           string              `json:"memo,omitempty"`
	Lines          []*JournalEntryLine `json:"lines"`
	TotalDebit     float64             `json:"total_debit"`
	TotalCredit    float64             `json:"total_credit"`
}

// ComputeTotals re-derives the debit and credit totals from the lines.
func (e *JournalEntry) ComputeTotals() {
	var debit, credit float64
	for _, line := range e.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
}

// Balanced recomputes the totals and reports whether they agree within
// BalanceTolerance.
func (e *JournalEntry) Balanced() bool {
	e.ComputeTotals()
	return math.Abs(e.TotalDebit-e.TotalCredit) < BalanceTolerance
}

// Violations recomputes totals and returns every balance or line invariant
// the entry breaks. All problems are collected so a reviewer sees them at
// once rather than one per run.
func (e *JournalEntry) Violations() []string {
	var out []string
	if !e.Balanced() {
		out = append(out, fmt.Sprintf("journal entry does not balance: DR=%.2f CR=%.2f", e.TotalDebit, e.TotalCredit))
	}
	for _, line := range e.Lines {
		out = append(out, line.Violations()...)
	}
	return out
}

// Variance is one account-level difference identified during reconciliation.
// VarianceAmount is always source minus target.
type Variance struct {
	Account          string         `json:"account"`
	AccountName      string         `json:"account_name"`
	SourceAmount     float64        `json:"source_amount"`
	TargetAmount     float64        `json:"target_amount"`
	VarianceAmount   float64        `json:"variance_amount"`
	VariancePercent  float64        `json:"variance_percent"`
	Classification   Classification `json:"classification,omitempty"`
	Explanation      string         `json:"explanation,omitempty"`
	IsMaterial       bool           `json:"is_material"`
	RequiresApproval bool           `json:"requires_approval"`
}

// ApprovalRequest captures everything a human approver needs to disposition a
// run: a summary, the variances that require review and any journal entries
// awaiting posting. Created at most once per run.
type ApprovalRequest struct {
	RequestID      string                 `json:"request_id"`
	WorkflowType   string                 `json:"workflow_type"`
	CreatedAt      time.Time              `json:"created_at"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Variances      []*Variance            `json:"variances,omitempty"`
	JournalEntries []*JournalEntry        `json:"journal_entries,omitempty"`
	Status         ApprovalStatus         `json:"status"`
	Approver       string                 `json:"approver,omitempty"`
	ApprovedAt     *time.Time             `json:"approved_at,omitempty"`
	Comments       string                 `json:"comments,omitempty"`
}
