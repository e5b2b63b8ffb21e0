// Package memory provides fixture-backed data sources used in tests and
// offline dry runs of the close pipelines.
package memory

import (
	"context"

	"github.com/finclose/finclose/service/source"
)

// AccountSource serves a fixed slice of account records and counts calls so
// tests can assert a resumed run does not re-extract.
type AccountSource struct {
	Records []source.Record
	Err     error
	Calls   int
}

func (s *AccountSource) Accounts(_ context.Context, _ string) ([]source.Record, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Records, nil
}

// InvoiceSource serves a fixed slice of invoice records.
type InvoiceSource struct {
	Records []source.Record
	Err     error
	Calls   int
}

func (s *InvoiceSource) PendingInvoices(_ context.Context, _, _ string) ([]source.Record, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Records, nil
}

// BillSource serves a fixed slice of bill records.
type BillSource struct {
	Records []source.Record
	Err     error
	Calls   int
}

func (s *BillSource) Bills(_ context.Context, _, _ string) ([]source.Record, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Records, nil
}
