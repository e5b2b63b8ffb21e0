package accrual

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/types"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/oracle/rules"
	"github.com/finclose/finclose/service/source"
	sourcemem "github.com/finclose/finclose/service/source/memory"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func invoice(id string, amount float64, start, end string) *finance.Invoice {
	return &finance.Invoice{
		InvoiceID: id,
		Amount:    amount,
		Account:   6310,
		ServicePeriod: &finance.ServicePeriod{
			Start: start,
			End:   end,
		},
	}
}

func TestProrate(t *testing.T) {
	closeDate := mustDate(t, "2025-11-30")

	var testCases = []struct {
		description string
		invoice     *finance.Invoice
		totalDays   int
		accrualDays int
		amount      float64
	}{
		{
			description: "period entirely within close accrues in full",
			invoice:     invoice("INV-1001", 12000.00, "2025-11-01", "2025-11-30"),
			totalDays:   30,
			accrualDays: 30,
			amount:      12000.00,
		},
		{
			description: "period entirely in the future accrues nothing",
			invoice:     invoice("INV-1003", 5000.00, "2025-12-01", "2025-12-31"),
			totalDays:   31,
			accrualDays: 0,
			amount:      0,
		},
		{
			description: "period straddling the close prorates by day",
			invoice:     invoice("INV-1002", 3100.00, "2025-11-28", "2025-12-02"),
			totalDays:   5,
			accrualDays: 3,
			amount:      1860.00,
		},
		{
			description: "single-day period on the close date",
			invoice:     invoice("INV-1004", 400.00, "2025-11-30", "2025-11-30"),
			totalDays:   1,
			accrualDays: 1,
			amount:      400.00,
		},
	}

	for _, testCase := range testCases {
		calculation, err := Prorate(testCase.invoice, closeDate)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.totalDays, calculation.TotalDays, testCase.description)
		assert.Equal(t, testCase.accrualDays, calculation.AccrualDays, testCase.description)
		assert.Equal(t, testCase.amount, calculation.AccrualAmount, testCase.description)
	}
}

func TestProrateRoundsToCents(t *testing.T) {
	calculation, err := Prorate(invoice("INV-7", 1000.00, "2025-11-24", "2025-12-06"), mustDate(t, "2025-11-30"))
	require.NoError(t, err)
	assert.Equal(t, 13, calculation.TotalDays)
	assert.Equal(t, 7, calculation.AccrualDays)
	// 1000/13*7 = 538.4615...
	assert.Equal(t, 538.46, calculation.AccrualAmount)
}

func TestProrateRejectsInvertedPeriod(t *testing.T) {
	_, err := Prorate(invoice("INV-9", 100.00, "2025-12-05", "2025-12-01"), mustDate(t, "2025-11-30"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestProrateRejectsUnparseableDates(t *testing.T) {
	_, err := Prorate(invoice("INV-9", 100.00, "last week", "2025-12-01"), mustDate(t, "2025-11-30"))
	assert.Error(t, err)
}

func TestFetchBillsSkipsAlreadyBilled(t *testing.T) {
	service := &Service{
		Bills: &sourcemem.BillSource{Records: []source.Record{
			{"bill_id": "B-1", "external_id": "INV-1001", "amount": 12000.0},
		}},
		CloseDate:   "2025-11-30",
		PeriodStart: "2025-11-01",
	}
	state := execution.NewState("zip_accrual")
	state.Invoices = []*finance.Invoice{
		invoice("INV-1001", 12000.00, "2025-11-01", "2025-11-30"),
		invoice("INV-1002", 3100.00, "2025-11-28", "2025-12-02"),
	}

	messages, err := service.FetchBills(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, state.Invoices, 1)
	assert.Equal(t, "INV-1002", state.Invoices[0].InvoiceID)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "skipped 1 already-billed")
}

func TestIdentifyServicePeriodsFallsBackToInvoiceDate(t *testing.T) {
	service := &Service{Oracle: &failingOracle{}}
	state := execution.NewState("zip_accrual")
	state.Invoices = []*finance.Invoice{
		{InvoiceID: "INV-5", Amount: 900.00, InvoiceDate: "2025-11-20", Account: 6310},
	}

	_, err := service.IdentifyServicePeriods(context.Background(), state)
	require.NoError(t, err)
	period := state.Invoices[0].ServicePeriod
	require.NotNil(t, period)
	assert.Equal(t, "2025-11-20", period.Start)
	assert.Equal(t, "2025-11-20", period.End)
	assert.Equal(t, string(oracle.ConfidenceLow), period.Confidence)
}

type failingOracle struct{}

func (o *failingOracle) ClassifyVariance(_ context.Context, _ *oracle.ClassificationRequest) (*oracle.ClassificationResponse, error) {
	return nil, errors.New("oracle unavailable")
}

func (o *failingOracle) IdentifyServicePeriod(_ context.Context, _ *oracle.PeriodRequest) (*oracle.PeriodResponse, error) {
	return nil, errors.New("oracle unavailable")
}

func TestGenerateGroupsByDimensions(t *testing.T) {
	service := &Service{
		CloseDate:        "2025-11-30",
		Subsidiary:       2,
		SubsidiaryName:   "Acme US",
		LiabilityAccount: 2110,
	}
	state := execution.NewState("zip_accrual")
	state.Accruals = []*finance.AccrualCalculation{
		{InvoiceID: "INV-2", AccrualAmount: 500.00, Account: 6310, Department: 3},
		{InvoiceID: "INV-1", AccrualAmount: 1200.00, Account: 6310, Department: 3},
		{InvoiceID: "INV-3", AccrualAmount: 800.00, Account: 6420, Department: 5},
		{InvoiceID: "INV-4", AccrualAmount: 0, Account: 6500},
	}

	_, err := service.Generate(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, state.JournalEntries, 1)
	entry := state.JournalEntries[0]
	require.Len(t, entry.Lines, 3, "two debit groups plus the credit line")

	assert.Equal(t, 6310, entry.Lines[0].Account)
	assert.Equal(t, 1700.00, entry.Lines[0].Debit)
	assert.Equal(t, "Accrual for invoices: INV-1, INV-2", entry.Lines[0].Memo)

	assert.Equal(t, 6420, entry.Lines[1].Account)
	assert.Equal(t, 800.00, entry.Lines[1].Debit)

	credit := entry.Lines[2]
	assert.Equal(t, 2110, credit.Account)
	assert.Equal(t, 2500.00, credit.Credit)

	assert.True(t, entry.Balanced())
	assert.Equal(t, "2025-11-30", entry.TranDate)
	assert.Equal(t, "Accruals - 2025-11-30", entry.Memo)
}

func TestGenerateIsDeterministic(t *testing.T) {
	service := &Service{CloseDate: "2025-11-30", LiabilityAccount: 2110}
	accruals := []*finance.AccrualCalculation{
		{InvoiceID: "INV-3", AccrualAmount: 10.00, Account: 6420, Department: 5, Class: 2},
		{InvoiceID: "INV-1", AccrualAmount: 20.00, Account: 6310, Department: 3},
		{InvoiceID: "INV-2", AccrualAmount: 30.00, Account: 6310, Department: 1},
		{InvoiceID: "INV-4", AccrualAmount: 40.00, Account: 6420, Department: 5, Class: 1},
	}

	encode := func() string {
		state := execution.NewState("zip_accrual")
		state.Accruals = accruals
		_, err := service.Generate(context.Background(), state)
		require.NoError(t, err)
		data, err := json.Marshal(state.JournalEntries)
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, encode(), encode(), "identical input yields a byte-identical entry")
}

func TestGenerateNothingAccruable(t *testing.T) {
	service := &Service{CloseDate: "2025-11-30", LiabilityAccount: 2110}
	state := execution.NewState("zip_accrual")
	state.Accruals = []*finance.AccrualCalculation{
		{InvoiceID: "INV-3", AccrualAmount: 0, Account: 6420},
	}

	messages, err := service.Generate(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, state.JournalEntries)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "No accruable amounts")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	service := &Service{}
	state := execution.NewState("zip_accrual")
	state.JournalEntries = []*finance.JournalEntry{
		{
			TranDate: "2025-11-30",
			Lines: []*finance.JournalEntryLine{
				{Account: 6310, Debit: 100.00, Credit: 50.00},
				{Debit: 25.00},
			},
		},
	}

	_, err := service.Validate(context.Background(), state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Contains(t, err.Error(), "both debit and credit")
	assert.Contains(t, err.Error(), "no account")
}

func TestCalculateInvalidCloseDate(t *testing.T) {
	service := &Service{CloseDate: "yesterday"}
	state := execution.NewState("zip_accrual")

	_, err := service.Calculate(context.Background(), state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestExtractCalculateEndToEnd(t *testing.T) {
	ruleOracle := rules.New()
	ruleOracle.PeriodOverrides["INV-1002"] = &oracle.PeriodResponse{
		Start: "2025-11-28", End: "2025-12-02", Confidence: oracle.ConfidenceHigh,
	}
	service := &Service{
		Invoices: &sourcemem.InvoiceSource{Records: []source.Record{
			{"invoice_id": "INV-1001", "vendor": "CloudOps LLC", "amount": 12000.0, "invoice_date": "2025-11-15", "account": 6310},
			{"invoice_id": "INV-1002", "vendor": "Staffing Co", "amount": 3100.0, "invoice_date": "2025-11-28", "account": 6420},
		}},
		Bills:       &sourcemem.BillSource{},
		Oracle:      ruleOracle,
		CloseDate:   "2025-11-30",
		PeriodStart: "2025-11-01",
	}
	state := execution.NewState("zip_accrual")
	ctx := context.Background()

	_, err := service.ExtractInvoices(ctx, state)
	require.NoError(t, err)
	_, err = service.FetchBills(ctx, state)
	require.NoError(t, err)
	_, err = service.IdentifyServicePeriods(ctx, state)
	require.NoError(t, err)
	_, err = service.Calculate(ctx, state)
	require.NoError(t, err)

	require.Len(t, state.Accruals, 2)
	assert.Equal(t, 12000.00, state.Accruals[0].AccrualAmount, "full month accrues in full")
	assert.Equal(t, 1860.00, state.Accruals[1].AccrualAmount, "3 of 5 days at 620/day")
}
