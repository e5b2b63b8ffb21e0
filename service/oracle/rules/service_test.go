package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finclose/finclose/model/finance"
	"github.com/finclose/finclose/service/oracle"
)

func TestClassifyVariance(t *testing.T) {
	service := New()
	service.KnownAdjustments["Bonus Accrual"] = true
	ctx := context.Background()

	var testCases = []struct {
		description      string
		request          *oracle.ClassificationRequest
		expect           finance.Classification
		requiresApproval bool
	}{
		{
			description: "known adjustment account",
			request: &oracle.ClassificationRequest{
				AccountName:     "Bonus Accrual",
				VariancePercent: 42.0,
			},
			expect: finance.ClassificationKnownAdjustment,
		},
		{
			description: "small percent is timing",
			request: &oracle.ClassificationRequest{
				AccountName:     "Salaries and Wages",
				VariancePercent: 1.2,
			},
			expect: finance.ClassificationTiming,
		},
		{
			description: "negative small percent is timing",
			request: &oracle.ClassificationRequest{
				AccountName:     "Payroll Taxes",
				VariancePercent: -4.9,
			},
			expect: finance.ClassificationTiming,
		},
		{
			description: "large percent is a true variance",
			request: &oracle.ClassificationRequest{
				AccountName:     "Contractor Payments",
				VarianceAmount:  2500.0,
				VariancePercent: 12.0,
			},
			expect:           finance.ClassificationTrueVariance,
			requiresApproval: true,
		},
	}

	for _, testCase := range testCases {
		response, err := service.ClassifyVariance(ctx, testCase.request)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, response.Classification, testCase.description)
		assert.Equal(t, testCase.requiresApproval, response.RequiresApproval, testCase.description)
		assert.NotEmpty(t, response.Explanation, testCase.description)
	}
}

func TestClassifyVarianceNilRequest(t *testing.T) {
	_, err := New().ClassifyVariance(context.Background(), nil)
	assert.Error(t, err)
}

func TestIdentifyServicePeriod(t *testing.T) {
	service := New()
	service.PeriodOverrides["INV-1002"] = &oracle.PeriodResponse{
		Start:      "2025-11-28",
		End:        "2025-12-02",
		Confidence: oracle.ConfidenceHigh,
	}
	ctx := context.Background()

	pinned, err := service.IdentifyServicePeriod(ctx, &oracle.PeriodRequest{InvoiceID: "INV-1002", InvoiceDate: "2025-11-28"})
	require.NoError(t, err)
	assert.Equal(t, "2025-11-28", pinned.Start)
	assert.Equal(t, "2025-12-02", pinned.End)

	assumed, err := service.IdentifyServicePeriod(ctx, &oracle.PeriodRequest{InvoiceID: "INV-1001", InvoiceDate: "2025-11-15"})
	require.NoError(t, err)
	assert.Equal(t, "2025-11-01", assumed.Start)
	assert.Equal(t, "2025-11-30", assumed.End)
	assert.Equal(t, oracle.ConfidenceLow, assumed.Confidence)
}

func TestIdentifyServicePeriodBadDate(t *testing.T) {
	_, err := New().IdentifyServicePeriod(context.Background(), &oracle.PeriodRequest{InvoiceID: "INV-9", InvoiceDate: "soon"})
	assert.Error(t, err)
}
