// Package pipeline defines the run configuration shared by the close
// pipelines. Required fields are validated up front so a bad setup is
// rejected before the first step runs, not deep inside a kernel.
package pipeline

import (
	"time"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/model/types"
)

const dateLayout = "2006-01-02"

// DefaultLiabilityAccount is the accrued-liabilities account credited by the
// accrual pipeline unless overridden.
const DefaultLiabilityAccount = 2110

// Config enumerates every input a close pipeline accepts. Loaded from YAML
// through service/meta or populated directly by the caller.
type Config struct {
	// CloseDate is the last day of the period being closed (YYYY-MM-DD).
	CloseDate string `yaml:"close_date" json:"close_date"`
	// PeriodStart bounds extraction queries; defaults to the first day of
	// the close month.
	PeriodStart string `yaml:"period_start,omitempty" json:"period_start,omitempty"`
	// PayPeriod is the as-of date reconciled by the payroll pipeline.
	PayPeriod string `yaml:"pay_period,omitempty" json:"pay_period,omitempty"`

	SubsidiaryID   int    `yaml:"subsidiary_id" json:"subsidiary_id"`
	SubsidiaryName string `yaml:"subsidiary_name,omitempty" json:"subsidiary_name,omitempty"`

	// MaterialityThreshold defaults to finance.DefaultMaterialityThreshold.
	MaterialityThreshold float64 `yaml:"materiality_threshold,omitempty" json:"materiality_threshold,omitempty"`

	// AccruedLiabilityAccount defaults to DefaultLiabilityAccount.
	AccruedLiabilityAccount int `yaml:"accrued_liability_account,omitempty" json:"accrued_liability_account,omitempty"`

	// Recipient receives run notifications.
	Recipient string `yaml:"recipient,omitempty" json:"recipient,omitempty"`

	// ThreadID scopes the resumable run in the checkpoint store.
	ThreadID string `yaml:"thread_id,omitempty" json:"thread_id,omitempty"`
}

// Threshold returns the configured materiality threshold or its default.
func (c *Config) Threshold() float64 {
	if c.MaterialityThreshold > 0 {
		return c.MaterialityThreshold
	}
	return finance.DefaultMaterialityThreshold
}

// LiabilityAccount returns the accrued-liability account or its default.
func (c *Config) LiabilityAccount() int {
	if c.AccruedLiabilityAccount > 0 {
		return c.AccruedLiabilityAccount
	}
	return DefaultLiabilityAccount
}

// Meta renders the config as the run metadata recorded on the State.
func (c *Config) Meta() map[string]interface{} {
	meta := map[string]interface{}{
		"subsidiary_id":         c.SubsidiaryID,
		"materiality_threshold": c.Threshold(),
	}
	if c.CloseDate != "" {
		meta["close_date"] = c.CloseDate
	}
	if c.PayPeriod != "" {
		meta["pay_period"] = c.PayPeriod
	}
	if c.SubsidiaryName != "" {
		meta["subsidiary_name"] = c.SubsidiaryName
	}
	return meta
}

// ValidateReconciliation checks the fields the reconciliation pipeline needs.
func (c *Config) ValidateReconciliation() error {
	if c.PayPeriod == "" {
		return types.NewConfigurationError("pay_period is required")
	}
	if _, err := time.Parse(dateLayout, c.PayPeriod); err != nil {
		return types.NewConfigurationError("pay_period %q is not a valid date", c.PayPeriod)
	}
	return nil
}

// ValidateAccrual checks the fields the accrual pipeline needs and defaults
// PeriodStart to the first day of the close month.
func (c *Config) ValidateAccrual() error {
	if c.CloseDate == "" {
		return types.NewConfigurationError("close_date is required")
	}
	closeDate, err := time.Parse(dateLayout, c.CloseDate)
	if err != nil {
		return types.NewConfigurationError("close_date %q is not a valid date", c.CloseDate)
	}
	if c.SubsidiaryID <= 0 {
		return types.NewConfigurationError("subsidiary_id is required")
	}
	if c.PeriodStart == "" {
		first := time.Date(closeDate.Year(), closeDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		c.PeriodStart = first.Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, c.PeriodStart); err != nil {
		return types.NewConfigurationError("period_start %q is not a valid date", c.PeriodStart)
	}
	return nil
}
