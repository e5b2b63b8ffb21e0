package finance

// AccountBalance is one normalized account-level row returned by a ledger or
// payroll source for a given date. Extra source columns are dropped during
// normalization; only account and amount are required.
type AccountBalance struct {
	Account     string  `json:"account"`
	AccountName string  `json:"account_name,omitempty"`
	Amount      float64 `json:"amount"`
	AsOfDate    string  `json:"as_of_date,omitempty"`
	Department  string  `json:"department,omitempty"`
}

// ReconRow is the per-account outcome of one reconciliation pass, kept next
// to the emitted variances so an approver can see matched accounts too.
type ReconRow struct {
	Account      string  `json:"account"`
	AccountName  string  `json:"account_name,omitempty"`
	SourceAmount float64 `json:"source_amount"`
	TargetAmount float64 `json:"target_amount"`
	Variance     float64 `json:"variance"`
	Matched      bool    `json:"matched"`
}

// ServicePeriod is the date range over which a purchased service is consumed,
// identified from the invoice description. Dates use YYYY-MM-DD.
type ServicePeriod struct {
	Start      string `json:"service_start_date"`
	End        string `json:"service_end_date"`
	Confidence string `json:"confidence,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// Invoice is a pending payable pulled from the procurement system.
type Invoice struct {
	InvoiceID     string         `json:"invoice_id"`
	Vendor        string         `json:"vendor,omitempty"`
	VendorID      int            `json:"vendor_id,omitempty"`
	Amount        float64        `json:"amount"`
	InvoiceDate   string         `json:"invoice_date,omitempty"`
	Description   string         `json:"description,omitempty"`
	Account       int            `json:"account"`
	Department    int            `json:"department,omitempty"`
	Class         int            `json:"class,omitempty"`
	Location      int            `json:"location,omitempty"`
	Status        string         `json:"status,omitempty"`
	ServicePeriod *ServicePeriod `json:"service_period,omitempty"`
}

// Bill is an existing payable already recorded in the target ledger, used to
// guard against accruing an invoice twice.
type Bill struct {
	BillID     string  `json:"bill_id"`
	ExternalID string  `json:"external_id,omitempty"`
	VendorID   int     `json:"vendor_id,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	TranDate   string  `json:"trandate,omitempty"`
}

// AccrualCalculation is the day-prorated portion of one invoice attributable
// to the close period.
type AccrualCalculation struct {
	InvoiceID     string  `json:"invoice_id"`
	Vendor        string  `json:"vendor,omitempty"`
	VendorID      int     `json:"vendor_id,omitempty"`
	TotalAmount   float64 `json:"total_amount"`
	ServiceStart  string  `json:"service_start"`
	ServiceEnd    string  `json:"service_end"`
	TotalDays     int     `json:"total_days"`
	DailyRate     float64 `json:"daily_rate"`
	AccrualDays   int     `json:"accrual_days"`
	AccrualAmount float64 `json:"accrual_amount"`
	Account       int     `json:"account"`
	Department    int     `json:"department,omitempty"`
	Class         int     `json:"class,omitempty"`
	Location      int     `json:"location,omitempty"`
	Confidence    string  `json:"confidence,omitempty"`
}
