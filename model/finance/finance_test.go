package finance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJournalEntryBalanced(t *testing.T) {
	entry := &JournalEntry{
		Subsidiary: 1,
		TranDate:   "2025-11-30",
		Lines: []*JournalEntryLine{
			{Account: 6100, Debit: 1860.00},
			{Account: 6200, Debit: 25000.00},
			{Account: 2110, Credit: 26860.00},
		},
	}
	assert.True(t, entry.Balanced())
	assert.Equal(t, 26860.00, entry.TotalDebit)
	assert.Equal(t, 26860.00, entry.TotalCredit)
	assert.Empty(t, entry.Violations())
}

func TestJournalEntryUnbalanced(t *testing.T) {
	entry := &JournalEntry{
		Lines: []*JournalEntryLine{
			{Account: 6100, Debit: 100.00},
			{Account: 2110, Credit: 99.00},
		},
	}
	assert.False(t, entry.Balanced())
	violations := entry.Violations()
	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "does not balance")
}

func TestJournalEntryBalanceTolerance(t *testing.T) {
	// sub-cent drift is tolerated
	entry := &JournalEntry{
		Lines: []*JournalEntryLine{
			{Account: 6100, Debit: 100.004},
			{Account: 2110, Credit: 100.00},
		},
	}
	assert.True(t, entry.Balanced())
}

func TestLineViolations(t *testing.T) {
	testCases := []struct {
		description string
		line        JournalEntryLine
		expect      string
	}{
		{"both sides set", JournalEntryLine{Account: 6100, Debit: 10, Credit: 10}, "both debit and credit"},
		{"no amount", JournalEntryLine{Account: 6100}, "no amount"},
		{"missing account", JournalEntryLine{Debit: 10}, "no account"},
		{"negative amount", JournalEntryLine{Account: 6100, Debit: -10}, "negative"},
	}
	for _, testCase := range testCases {
		violations := testCase.line.Violations()
		assert.NotEmpty(t, violations, testCase.description)
		assert.Contains(t, strings.Join(violations, "; "), testCase.expect, testCase.description)
	}

	valid := JournalEntryLine{Account: 6100, Debit: 10}
	assert.Empty(t, valid.Violations())
}

func TestIsMaterial(t *testing.T) {
	threshold := 1000.0
	testCases := []struct {
		amount   float64
		material bool
	}{
		{999.99, false},
		{1000.0, true}, // boundary is inclusive
		{1000.01, true},
		{-1000.0, true},
		{-999.99, false},
		{0, false},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.material, IsMaterial(testCase.amount, threshold), "amount %v", testCase.amount)
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1860.00, Round2(620.0*3))
	assert.Equal(t, 0.1, Round2(0.10000000001))
	assert.Equal(t, 2.35, Round2(2.345000001))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$1234.50", FormatCurrency(1234.5))
}
