// Package rules implements a deterministic, rule-based oracle. It stands in
// for the LLM-backed collaborator in tests and offline dry runs and encodes
// the patterns reviewers apply by hand: known-adjustment accounts, small
// percentage differences as timing, everything else as a true variance.
package rules

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/service/oracle"
)

// timingPercentLimit is the variance percentage under which a difference is
// assumed to be an accrual timing artefact.
const timingPercentLimit = 5.0

// Service is a rule-based oracle. KnownAdjustments lists account names whose
// variances are expected; PeriodOverrides pins service periods per invoice id
// when the description carries no usable signal.
type Service struct {
	KnownAdjustments map[string]bool
	PeriodOverrides  map[string]*oracle.PeriodResponse
}

var _ oracle.Service = (*Service)(nil)

// New creates a rule-based oracle.
func New() *Service {
	return &Service{
		KnownAdjustments: map[string]bool{},
		PeriodOverrides:  map[string]*oracle.PeriodResponse{},
	}
}

// ClassifyVariance labels a material variance using static rules.
func (s *Service) ClassifyVariance(_ context.Context, request *oracle.ClassificationRequest) (*oracle.ClassificationResponse, error) {
	if request == nil {
		return nil, fmt.Errorf("nil classification request")
	}
	if s.KnownAdjustments[request.AccountName] {
		return &oracle.ClassificationResponse{
			Classification:   finance.ClassificationKnownAdjustment,
			Explanation:      fmt.Sprintf("%s carries a known manual adjustment", request.AccountName),
			RequiresApproval: false,
			Confidence:       oracle.ConfidenceHigh,
		}, nil
	}
	if math.Abs(request.VariancePercent) < timingPercentLimit {
		return &oracle.ClassificationResponse{
			Classification:   finance.ClassificationTiming,
			Explanation:      fmt.Sprintf("variance of %.2f%% is consistent with accrual timing", request.VariancePercent),
			RequiresApproval: false,
			Confidence:       oracle.ConfidenceMedium,
		}, nil
	}
	return &oracle.ClassificationResponse{
		Classification:   finance.ClassificationTrueVariance,
		Explanation:      fmt.Sprintf("variance of %s does not match any known pattern", finance.FormatCurrency(request.VarianceAmount)),
		RequiresApproval: true,
		Confidence:       oracle.ConfidenceMedium,
	}, nil
}

// IdentifyServicePeriod returns a pinned override when present, otherwise the
// calendar month of the invoice date (the recurring-service assumption).
func (s *Service) IdentifyServicePeriod(_ context.Context, request *oracle.PeriodRequest) (*oracle.PeriodResponse, error) {
	if request == nil {
		return nil, fmt.Errorf("nil period request")
	}
	if override, ok := s.PeriodOverrides[request.InvoiceID]; ok {
		return override, nil
	}
	invoiceDate, err := time.Parse("2006-01-02", request.InvoiceDate)
	if err != nil {
		return nil, fmt.Errorf("invoice %s has no usable date: %v", request.InvoiceID, err)
	}
	start := time.Date(invoiceDate.Year(), invoiceDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return &oracle.PeriodResponse{
		Start:      start.Format("2006-01-02"),
		End:        end.Format("2006-01-02"),
		Confidence: oracle.ConfidenceLow,
		Reasoning:  "no period stated; assumed the invoice month",
	}, nil
}
