package guardrail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validReport = `[REPORT T-042]
Status: done
Files:
- internal/api/server.go
Diff-Summary:
- added /healthz handler
Validation: unit suite green
Risks: none
Next: nothing
`

func violationCodes(vs []Violation) []string {
	var codes []string
	for _, v := range vs {
		codes = append(codes, v.Code)
	}
	return codes
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestEstimateTokensCountsCharacters(t *testing.T) {
	// Four Hangul characters are twelve bytes but one estimated token.
	assert.Equal(t, 1, EstimateTokens("가나다라"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("가", 100)))
}

func TestValidateReportLengthCountsCharacters(t *testing.T) {
	// Multibyte padding below the character cap must not trip the length check.
	padded := validReport + "Note: " + strings.Repeat("가", 7000) + "\n"
	v := ValidateCompactReport(padded)
	assert.NotContains(t, violationCodes(v.Violations), "REPORT_TOO_LONG")

	over := validReport + "Note: " + strings.Repeat("가", 8100) + "\n"
	v = ValidateCompactReport(over)
	assert.Contains(t, violationCodes(v.Violations), "REPORT_TOO_LONG")
}

func TestValidateCompactReportOK(t *testing.T) {
	v := ValidateCompactReport(validReport)
	assert.True(t, v.OK)
	assert.Empty(t, v.Violations)
	assert.Positive(t, v.EstimatedTokens)
}

func TestValidateEmptyReport(t *testing.T) {
	v := ValidateCompactReport("   \n  ")
	assert.False(t, v.OK)
	assert.Contains(t, violationCodes(v.Violations), "EMPTY")
}

func TestValidateMissingHeader(t *testing.T) {
	report := strings.Replace(validReport, "[REPORT T-042]", "Report for T-042", 1)
	v := ValidateCompactReport(report)
	assert.Contains(t, violationCodes(v.Violations), "MISSING_REPORT_HEADER")
}

func TestValidateCodeFenceForbidden(t *testing.T) {
	v := ValidateCompactReport(validReport + "\n```go\nfunc main() {}\n```\n")
	assert.Contains(t, violationCodes(v.Violations), "CODE_FENCE_FORBIDDEN")
}

func TestValidateMissingSection(t *testing.T) {
	report := strings.Replace(validReport, "Risks: none\n", "", 1)
	v := ValidateCompactReport(report)
	assert.Contains(t, violationCodes(v.Violations), "MISSING_SECTION")
}

func TestValidateSectionOrder(t *testing.T) {
	report := `[REPORT T-042]
Status: done
Validation: green
Files:
- a.go
Diff-Summary:
- changed a
Risks: none
Next: nothing
`
	v := ValidateCompactReport(report)
	assert.Contains(t, violationCodes(v.Violations), "SECTION_ORDER")
}

func TestValidateFilesEmpty(t *testing.T) {
	report := `[REPORT T-042]
Status: done
Files:
Diff-Summary:
- changed a
Validation: green
Risks: none
Next: nothing
`
	v := ValidateCompactReport(report)
	assert.Contains(t, violationCodes(v.Violations), "FILES_EMPTY")
}

func TestValidateTooManyBullets(t *testing.T) {
	report := validReport + strings.Repeat("- extra bullet\n", 11)
	v := ValidateCompactReport(report)
	assert.Contains(t, violationCodes(v.Violations), "TOO_MANY_BULLETS")
}

func TestValidateReportTooLong(t *testing.T) {
	v := ValidateCompactReport(validReport + strings.Repeat("x", 8001))
	assert.Contains(t, violationCodes(v.Violations), "REPORT_TOO_LONG")
}

func TestCheckBudgetBoundaries(t *testing.T) {
	cases := []struct {
		tokens int
		want   BudgetState
	}{
		{0, StateOK},
		{1999, StateOK},
		{2000, StateOK}, // equality with soft is still OK
		{2001, StateSoftExceeded},
		{3500, StateSoftExceeded}, // equality with hard is soft
		{3501, StateHardExceeded},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CheckBudget(tc.tokens, DefaultSoftLimit, DefaultHardLimit), "tokens=%d", tc.tokens)
	}
}

func TestDecideAction(t *testing.T) {
	high := []Violation{{Code: "MISSING_SECTION", Severity: SeverityHigh}}
	medium := []Violation{{Code: "SECTION_ORDER", Severity: SeverityMedium}}

	assert.Equal(t, ActionAllow, DecideAction(StateOK, nil))
	assert.Equal(t, ActionSummarize, DecideAction(StateOK, medium))
	assert.Equal(t, ActionSummarize, DecideAction(StateSoftExceeded, nil))
	assert.Equal(t, ActionBlock, DecideAction(StateOK, high))
	assert.Equal(t, ActionBlock, DecideAction(StateHardExceeded, nil))
	assert.Equal(t, ActionBlock, DecideAction(StateHardExceeded, medium))
}
