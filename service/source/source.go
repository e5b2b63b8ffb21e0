package source

import (
	"context"
	"fmt"

	"github.com/viant/toolbox"

	"github.com/finclose/finclose/model/finance"
)

// Record is one loosely-typed row returned by an external data source. The
// core imposes no schema beyond "account" and "amount" being present and
// numeric; extra columns are carried as-is and ignored.
type Record map[string]interface{}

// String returns a record field coerced to string, empty when absent.
func (r Record) String(key string) string {
	value, ok := r[key]
	if !ok || value == nil {
		return ""
	}
	return toolbox.AsString(value)
}

// Float returns a record field coerced to float64.
func (r Record) Float(key string) (float64, error) {
	value, ok := r[key]
	if !ok || value == nil {
		return 0, fmt.Errorf("field %q is missing", key)
	}
	result, err := toolbox.ToFloat(value)
	if err != nil {
		return 0, fmt.Errorf("field %q is not numeric: %v", key, err)
	}
	return result, nil
}

// Int returns a record field coerced to int, zero when absent.
func (r Record) Int(key string) int {
	value, ok := r[key]
	if !ok || value == nil {
		return 0
	}
	result, err := toolbox.ToInt(value)
	if err != nil {
		return 0
	}
	return result
}

// AccountSource supplies dated account-level balances from a payroll or
// ledger system. Implementations own their authentication, retries and
// timeouts; a timeout must surface as a returned error.
type AccountSource interface {
	Accounts(ctx context.Context, asOf string) ([]Record, error)
}

// InvoiceSource supplies pending invoices from a procurement system.
type InvoiceSource interface {
	PendingInvoices(ctx context.Context, from, to string) ([]Record, error)
}

// BillSource supplies payables already recorded in the target ledger.
type BillSource interface {
	Bills(ctx context.Context, from, to string) ([]Record, error)
}

// AccountBalances normalizes loose source records. A record without an
// account or with a non-numeric amount is a data error, not something to
// coerce silently.
func AccountBalances(records []Record) ([]*finance.AccountBalance, error) {
	out := make([]*finance.AccountBalance, 0, len(records))
	for i, record := range records {
		account := record.String("account")
		if account == "" {
			return nil, fmt.Errorf("record %d has no account", i)
		}
		amount, err := record.Float("amount")
		if err != nil {
			return nil, fmt.Errorf("record %d (account %s): %v", i, account, err)
		}
		out = append(out, &finance.AccountBalance{
			Account:     account,
			AccountName: record.String("account_name"),
			Amount:      amount,
			AsOfDate:    record.String("as_of_date"),
			Department:  record.String("department"),
		})
	}
	return out, nil
}

// Invoices normalizes loose invoice records.
func Invoices(records []Record) ([]*finance.Invoice, error) {
	out := make([]*finance.Invoice, 0, len(records))
	for i, record := range records {
		invoiceID := record.String("invoice_id")
		if invoiceID == "" {
			return nil, fmt.Errorf("record %d has no invoice_id", i)
		}
		amount, err := record.Float("amount")
		if err != nil {
			return nil, fmt.Errorf("record %d (invoice %s): %v", i, invoiceID, err)
		}
		account := record.Int("account")
		if account == 0 {
			return nil, fmt.Errorf("record %d (invoice %s) has no account", i, invoiceID)
		}
		out = append(out, &finance.Invoice{
			InvoiceID:   invoiceID,
			Vendor:      record.String("vendor"),
			VendorID:    record.Int("vendor_id"),
			Amount:      amount,
			InvoiceDate: record.String("invoice_date"),
			Description: record.String("description"),
			Account:     account,
			Department:  record.Int("department"),
			Class:       record.Int("class"),
			Location:    record.Int("location"),
			Status:      record.String("status"),
		})
	}
	return out, nil
}

// Bills normalizes loose bill records; unusable rows are skipped since bills
// only feed the duplicate guard.
func Bills(records []Record) []*finance.Bill {
	out := make([]*finance.Bill, 0, len(records))
	for _, record := range records {
		billID := record.String("bill_id")
		if billID == "" {
			billID = record.String("external_id")
		}
		if billID == "" {
			continue
		}
		amount, _ := record.Float("amount")
		out = append(out, &finance.Bill{
			BillID:     billID,
			ExternalID: record.String("external_id"),
			VendorID:   record.Int("vendor_id"),
			Amount:     amount,
			TranDate:   record.String("trandate"),
		})
	}
	return out
}
