// Package accrual implements the accrual kernel: service-period proration by
// calendar day, dimensional grouping and synthesis of a balanced journal
// entry. Output ordering is deterministic so re-runs on identical input
// produce byte-identical entries.
package accrual

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/types"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/source"
)

const dateLayout = "2006-01-02"

// Service holds the collaborators and per-run settings of one accrual run.
type Service struct {
	Invoices source.InvoiceSource
	Bills    source.BillSource
	Oracle   oracle.Service

	CloseDate        string
	PeriodStart      string
	Subsidiary       int
	SubsidiaryName   string
	LiabilityAccount int // accrued liabilities credit account
}

// ExtractInvoices pulls pending invoices from the procurement system.
func (s *Service) ExtractInvoices(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	records, err := s.Invoices.PendingInvoices(ctx, s.PeriodStart, s.CloseDate)
	if err != nil {
		return nil, types.NewExtractionError("pending invoices", err)
	}
	invoices, err := source.Invoices(records)
	if err != nil {
		return nil, types.NewExtractionError("pending invoices", err)
	}
	state.Invoices = invoices
	return []execution.Message{
		execution.NewMessage("system", fmt.Sprintf("Extracted %d pending invoices", len(invoices))),
	}, nil
}

// FetchBills pulls payables already recorded in the target ledger and drops
// invoices that are already billed, so nothing is accrued twice.
func (s *Service) FetchBills(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	records, err := s.Bills.Bills(ctx, s.PeriodStart, s.CloseDate)
	if err != nil {
		return nil, types.NewExtractionError("existing bills", err)
	}
	bills := source.Bills(records)
	state.ExistingBills = bills

	billed := make(map[string]bool, len(bills))
	for _, bill := range bills {
		billed[bill.BillID] = true
		if bill.ExternalID != "" {
			billed[bill.ExternalID] = true
		}
	}
	kept := state.Invoices[:0]
	skipped := 0
	for _, invoice := range state.Invoices {
		if billed[invoice.InvoiceID] {
			skipped++
			continue
		}
		kept = append(kept, invoice)
	}
	state.Invoices = kept

	content := fmt.Sprintf("Fetched %d existing bills", len(bills))
	if skipped > 0 {
		content += fmt.Sprintf(", skipped %d already-billed invoices", skipped)
	}
	return []execution.Message{execution.NewMessage("system", content)}, nil
}

// IdentifyServicePeriods asks the oracle for each invoice's service window.
// A failed or malformed answer falls back to the invoice date itself with low
// confidence, so the run proceeds and a reviewer sees the assumption.
func (s *Service) IdentifyServicePeriods(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	for _, invoice := range state.Invoices {
		response, err := s.Oracle.IdentifyServicePeriod(ctx, &oracle.PeriodRequest{
			InvoiceID:   invoice.InvoiceID,
			Vendor:      invoice.Vendor,
			Amount:      invoice.Amount,
			InvoiceDate: invoice.InvoiceDate,
			Description: invoice.Description,
		})
		if err != nil || response == nil {
			invoice.ServicePeriod = &finance.ServicePeriod{
				Start:      invoice.InvoiceDate,
				End:        invoice.InvoiceDate,
				Confidence: string(oracle.ConfidenceLow),
				Reasoning:  "Could not parse service period from description",
			}
			continue
		}
		invoice.ServicePeriod = &finance.ServicePeriod{
			Start:      response.Start,
			End:        response.End,
			Confidence: string(response.Confidence),
			Reasoning:  response.Reasoning,
		}
	}
	return []execution.Message{
		execution.NewMessage("assistant", fmt.Sprintf("Identified service periods for %d invoices", len(state.Invoices))),
	}, nil
}

// Calculate prorates every invoice amount by calendar day against the close
// date. A service window with zero or negative length is a data error and is
// reported, never coerced.
func (s *Service) Calculate(_ context.Context, state *execution.State) ([]execution.Message, error) {
	closeDate, err := time.Parse(dateLayout, s.CloseDate)
	if err != nil {
		return nil, types.NewConfigurationError("invalid close date %q: %v", s.CloseDate, err)
	}

	calculations := make([]*finance.AccrualCalculation, 0, len(state.Invoices))
	for _, invoice := range state.Invoices {
		if invoice.ServicePeriod == nil {
			return nil, types.NewValidationError(fmt.Sprintf("invoice %s has no service period", invoice.InvoiceID))
		}
		calculation, err := Prorate(invoice, closeDate)
		if err != nil {
			return nil, err
		}
		calculations = append(calculations, calculation)
	}
	state.Accruals = calculations
	return []execution.Message{
		execution.NewMessage("assistant", fmt.Sprintf("Calculated accruals for %d invoices", len(calculations))),
	}, nil
}

// Prorate computes the portion of one invoice attributable to the period
// ending at closeDate. Both service dates are inclusive calendar days.
func Prorate(invoice *finance.Invoice, closeDate time.Time) (*finance.AccrualCalculation, error) {
	period := invoice.ServicePeriod
	start, err := time.Parse(dateLayout, period.Start)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("invoice %s has invalid service start %q", invoice.InvoiceID, period.Start))
	}
	end, err := time.Parse(dateLayout, period.End)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("invoice %s has invalid service end %q", invoice.InvoiceID, period.End))
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	if totalDays <= 0 {
		return nil, types.NewValidationError(fmt.Sprintf("invoice %s has service end %s before start %s",
			invoice.InvoiceID, period.End, period.Start))
	}
	dailyRate := invoice.Amount / float64(totalDays)

	var accrualDays int
	var accrualAmount float64
	switch {
	case !end.After(closeDate):
		// entire service period is in the close period
		accrualDays = totalDays
		accrualAmount = invoice.Amount
	case start.After(closeDate):
		// entire service period is in the future
		accrualDays = 0
		accrualAmount = 0
	default:
		accrualDays = int(closeDate.Sub(start).Hours()/24) + 1
		accrualAmount = finance.Round2(dailyRate * float64(accrualDays))
	}

	return &finance.AccrualCalculation{
		InvoiceID:     invoice.InvoiceID,
		Vendor:        invoice.Vendor,
		VendorID:      invoice.VendorID,
		TotalAmount:   invoice.Amount,
		ServiceStart:  period.Start,
		ServiceEnd:    period.End,
		TotalDays:     totalDays,
		DailyRate:     dailyRate,
		AccrualDays:   accrualDays,
		AccrualAmount: accrualAmount,
		Account:       invoice.Account,
		Department:    invoice.Department,
		Class:         invoice.Class,
		Location:      invoice.Location,
		Confidence:    period.Confidence,
	}, nil
}

// groupKey is the accounting dimension tuple a debit line aggregates over.
type groupKey struct {
	account    int
	department int
	class      int
	location   int
}

type group struct {
	key      groupKey
	amount   float64
	invoices []string
}

// Generate synthesizes one balanced journal entry: one debit line per
// dimension group with accrued amount > 0 and a single credit line to the
// accrued-liability account. Lines are sorted by grouping key so identical
// input yields a byte-identical entry.
func (s *Service) Generate(_ context.Context, state *execution.State) ([]execution.Message, error) {
	groups := map[groupKey]*group{}
	for _, calculation := range state.Accruals {
		if calculation.AccrualAmount <= 0 {
			continue
		}
		key := groupKey{
			account:    calculation.Account,
			department: calculation.Department,
			class:      calculation.Class,
			location:   calculation.Location,
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
		}
		g.amount = finance.Round2(g.amount + calculation.AccrualAmount)
		g.invoices = append(g.invoices, calculation.InvoiceID)
	}

	if len(groups) == 0 {
		state.JournalEntries = nil
		return []execution.Message{
			execution.NewMessage("assistant", "No accruable amounts, no journal entry generated"),
		}, nil
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].key, ordered[j].key
		if a.account != b.account {
			return a.account < b.account
		}
		if a.department != b.department {
			return a.department < b.department
		}
		if a.class != b.class {
			return a.class < b.class
		}
		return a.location < b.location
	})

	var total float64
	lines := make([]*finance.JournalEntryLine, 0, len(ordered)+1)
	for _, g := range ordered {
		sort.Strings(g.invoices)
		lines = append(lines, &finance.JournalEntryLine{
			Account:    g.key.account,
			Debit:      g.amount,
			Department: g.key.department,
			Class:      g.key.class,
			Location:   g.key.location,
			Memo:       fmt.Sprintf("Accrual for invoices: %s", strings.Join(g.invoices, ", ")),
		})
		total = finance.Round2(total + g.amount)
	}
	lines = append(lines, &finance.JournalEntryLine{
		Account:     s.LiabilityAccount,
		AccountName: "Accrued Liabilities",
		Credit:      total,
		Memo:        "Period-end accrual entry",
	})

	entry := &finance.JournalEntry{
		Subsidiary:     s.Subsidiary,
		SubsidiaryName: s.SubsidiaryName,
		TranDate:       s.CloseDate,
		Memo:           fmt.Sprintf("Accruals - %s", s.CloseDate),
		Lines:          lines,
	}
	entry.ComputeTotals()
	state.JournalEntries = []*finance.JournalEntry{entry}

	return []execution.Message{
		execution.NewMessage("assistant", fmt.Sprintf("Generated journal entry with %d lines, total amount: %s",
			len(lines), finance.FormatCurrency(total))),
	}, nil
}

// Validate re-derives totals and checks every balance and line invariant,
// collecting all violations into one error so a reviewer sees every problem
// at once.
func (s *Service) Validate(_ context.Context, state *execution.State) ([]execution.Message, error) {
	var violations []string
	for _, entry := range state.JournalEntries {
		violations = append(violations, entry.Violations()...)
	}
	if len(violations) > 0 {
		return nil, types.NewValidationError(strings.Join(violations, "; "))
	}
	return []execution.Message{
		execution.NewMessage("system", "All journal entries validated successfully"),
	}, nil
}
