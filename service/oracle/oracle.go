package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/types"
)

// Confidence expresses how sure the oracle is about an answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ClassificationRequest is the structured summary of one variance sent to the
// classification oracle.
type ClassificationRequest struct {
	Account         string  `json:"account"`
	AccountName     string  `json:"account_name"`
	SourceAmount    float64 `json:"source_amount"`
	TargetAmount    float64 `json:"target_amount"`
	VarianceAmount  float64 `json:"variance_amount"`
	VariancePercent float64 `json:"variance_percent"`
}

// ClassificationResponse is the oracle's answer. Classification is one of
// timing, true_variance or known_adjustment; immaterial variances never reach
// the oracle.
type ClassificationResponse struct {
	Classification   finance.Classification `json:"classification"`
	Explanation      string                 `json:"explanation"`
	RequiresApproval bool                   `json:"requires_approval"`
	Confidence       Confidence             `json:"confidence,omitempty"`
}

// PeriodRequest is the structured summary of one invoice sent to the oracle
// to identify the service period from its description.
type PeriodRequest struct {
	InvoiceID   string  `json:"invoice_id"`
	Vendor      string  `json:"vendor,omitempty"`
	Amount      float64 `json:"amount"`
	InvoiceDate string  `json:"invoice_date"`
	Description string  `json:"description"`
}

// PeriodResponse is the identified service window, dates as YYYY-MM-DD.
type PeriodResponse struct {
	Start      string     `json:"service_start_date"`
	End        string     `json:"service_end_date"`
	Confidence Confidence `json:"confidence,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// Service is the classification oracle capability consumed by the kernels.
// Implementations are external collaborators (typically LLM-backed) and own
// their latency bounds; the kernels treat any error or malformed answer as a
// signal to apply their conservative fallback.
type Service interface {
	ClassifyVariance(ctx context.Context, request *ClassificationRequest) (*ClassificationResponse, error)
	IdentifyServicePeriod(ctx context.Context, request *PeriodRequest) (*PeriodResponse, error)
}

// ParseClassification decodes a raw oracle answer, tolerating upper-case
// labels. A response that is not JSON or names an unknown classification is
// rejected so the caller escalates instead of auto-approving.
func ParseClassification(data []byte) (*ClassificationResponse, error) {
	response := &ClassificationResponse{}
	if err := json.Unmarshal(data, response); err != nil {
		return nil, types.NewOracleError(fmt.Errorf("unparseable classification response: %v", err))
	}
	switch finance.Classification(strings.ToLower(string(response.Classification))) {
	case finance.ClassificationTiming:
		response.Classification = finance.ClassificationTiming
	case finance.ClassificationTrueVariance:
		response.Classification = finance.ClassificationTrueVariance
	case finance.ClassificationKnownAdjustment:
		response.Classification = finance.ClassificationKnownAdjustment
	default:
		return nil, types.NewOracleError(fmt.Errorf("unknown classification %q", response.Classification))
	}
	return response, nil
}

// ParsePeriod decodes a raw service-period answer and checks both dates are
// present.
func ParsePeriod(data []byte) (*PeriodResponse, error) {
	response := &PeriodResponse{}
	if err := json.Unmarshal(data, response); err != nil {
		return nil, types.NewOracleError(fmt.Errorf("unparseable period response: %v", err))
	}
	if response.Start == "" || response.End == "" {
		return nil, types.NewOracleError(fmt.Errorf("period response is missing dates"))
	}
	return response, nil
}
