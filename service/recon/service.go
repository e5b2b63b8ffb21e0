// Package recon implements the reconciliation kernel: account matching
// between two dated datasets, variance computation, materiality and
// classification dispatch. The numbers it produces feed financial close, so
// every ambiguous case escalates rather than auto-approves.
package recon

import (
	"context"
	"fmt"
	"math"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/types"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/oracle"
	"github.com/finclose/finclose/service/source"
)

// matchTolerance is the absolute difference under which two account amounts
// are considered a perfect match (cent granularity).
const matchTolerance = 0.01

// fallbackExplanation is recorded when the oracle fails; correctness favours
// escalation over silent auto-approval.
const fallbackExplanation = "Classification failed, requires manual review"

// Service holds the collaborators and per-run settings of one reconciliation.
type Service struct {
	Source    source.AccountSource
	Target    source.AccountSource
	Oracle    oracle.Service
	Threshold float64
	AsOf      string
}

// New creates a reconciliation kernel. A non-positive threshold falls back to
// the default materiality threshold.
func New(src, tgt source.AccountSource, oracleService oracle.Service, threshold float64, asOf string) *Service {
	if threshold <= 0 {
		threshold = finance.DefaultMaterialityThreshold
	}
	return &Service{Source: src, Target: tgt, Oracle: oracleService, Threshold: threshold, AsOf: asOf}
}

// ExtractSource pulls the source-side dataset (e.g. payroll summary).
func (s *Service) ExtractSource(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	records, err := s.Source.Accounts(ctx, s.AsOf)
	if err != nil {
		return nil, types.NewExtractionError("source accounts", err)
	}
	balances, err := source.AccountBalances(records)
	if err != nil {
		return nil, types.NewExtractionError("source accounts", err)
	}
	state.SourceAccounts = balances
	return []execution.Message{
		execution.NewMessage("system", fmt.Sprintf("Extracted source data for %d accounts", len(balances))),
	}, nil
}

// FetchTarget pulls the target-side dataset (e.g. ledger journal lines).
func (s *Service) FetchTarget(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	records, err := s.Target.Accounts(ctx, s.AsOf)
	if err != nil {
		return nil, types.NewExtractionError("target accounts", err)
	}
	balances, err := source.AccountBalances(records)
	if err != nil {
		return nil, types.NewExtractionError("target accounts", err)
	}
	state.TargetAccounts = balances
	return []execution.Message{
		execution.NewMessage("system", fmt.Sprintf("Fetched target data for %d accounts", len(balances))),
	}, nil
}

// Reconcile performs the account-by-account comparison. An account present
// only on the source side always escalates, regardless of amount; matched
// accounts are recorded but do not emit a variance. A source dataset listing
// the same account twice is rejected, the rows cannot be reconciled apart.
func (s *Service) Reconcile(_ context.Context, state *execution.State) ([]execution.Message, error) {
	lookup := make(map[string]*finance.AccountBalance, len(state.TargetAccounts))
	for _, balance := range state.TargetAccounts {
		lookup[balance.Account] = balance
	}

	rows := make([]*finance.ReconRow, 0, len(state.SourceAccounts))
	var variances []*finance.Variance

	seen := make(map[string]bool, len(state.SourceAccounts))
	for _, src := range state.SourceAccounts {
		if seen[src.Account] {
			return nil, types.NewReconciliationError(fmt.Errorf("source dataset lists account %s more than once", src.Account))
		}
		seen[src.Account] = true
		tgt := lookup[src.Account]
		if tgt == nil {
			variances = append(variances, &finance.Variance{
				Account:          src.Account,
				AccountName:      src.AccountName,
				SourceAmount:     src.Amount,
				TargetAmount:     0,
				VarianceAmount:   src.Amount,
				VariancePercent:  100,
				IsMaterial:       finance.IsMaterial(src.Amount, s.Threshold),
				RequiresApproval: true,
			})
			rows = append(rows, &finance.ReconRow{
				Account:      src.Account,
				AccountName:  src.AccountName,
				SourceAmount: src.Amount,
				Variance:     src.Amount,
				Matched:      math.Abs(src.Amount) < matchTolerance,
			})
			continue
		}

		varianceAmount := src.Amount - tgt.Amount
		matched := math.Abs(varianceAmount) <= matchTolerance
		if !matched {
			variancePercent := 0.0
			if src.Amount != 0 {
				variancePercent = varianceAmount / src.Amount * 100
			}
			variances = append(variances, &finance.Variance{
				Account:         src.Account,
				AccountName:     src.AccountName,
				SourceAmount:    src.Amount,
				TargetAmount:    tgt.Amount,
				VarianceAmount:  varianceAmount,
				VariancePercent: variancePercent,
				IsMaterial:      finance.IsMaterial(varianceAmount, s.Threshold),
			})
		}
		rows = append(rows, &finance.ReconRow{
			Account:      src.Account,
			AccountName:  src.AccountName,
			SourceAmount: src.Amount,
			TargetAmount: tgt.Amount,
			Variance:     varianceAmount,
			Matched:      matched,
		})
	}

	state.ReconRows = rows
	state.Variances = variances

	matchedCount := 0
	for _, row := range rows {
		if row.Matched {
			matchedCount++
		}
	}
	return []execution.Message{
		execution.NewMessage("assistant", fmt.Sprintf("Reconciliation complete: %d/%d accounts matched", matchedCount, len(rows))),
	}, nil
}

// Classify labels every variance. Immaterial variances are labelled locally
// without an oracle call; material ones go to the oracle, and any oracle
// failure applies the conservative fallback.
func (s *Service) Classify(ctx context.Context, state *execution.State) ([]execution.Message, error) {
	for _, variance := range state.Variances {
		if !variance.IsMaterial {
			variance.Classification = finance.ClassificationImmaterial
			variance.Explanation = fmt.Sprintf("Variance of %s is below materiality threshold",
				finance.FormatCurrency(math.Abs(variance.VarianceAmount)))
			continue
		}
		s.classifyMaterial(ctx, variance)
	}
	return []execution.Message{
		execution.NewMessage("assistant", fmt.Sprintf("Classified %d variances", len(state.Variances))),
	}, nil
}

func (s *Service) classifyMaterial(ctx context.Context, variance *finance.Variance) {
	response, err := s.Oracle.ClassifyVariance(ctx, &oracle.ClassificationRequest{
		Account:         variance.Account,
		AccountName:     variance.AccountName,
		SourceAmount:    variance.SourceAmount,
		TargetAmount:    variance.TargetAmount,
		VarianceAmount:  variance.VarianceAmount,
		VariancePercent: variance.VariancePercent,
	})
	if err != nil || response == nil {
		variance.Classification = finance.ClassificationTrueVariance
		variance.Explanation = fallbackExplanation
		variance.RequiresApproval = true
		return
	}
	variance.Classification = response.Classification
	variance.Explanation = response.Explanation
	// unmatched accounts already escalated; never downgrade approval need
	variance.RequiresApproval = variance.RequiresApproval || response.RequiresApproval
}
