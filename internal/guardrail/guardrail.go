// Package guardrail validates compact worker reports and enforces the token
// budget. Both checks are deterministic: no model, no network.
package guardrail

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BudgetState classifies the current token usage against the soft/hard limits.
type BudgetState string

const (
	StateOK           BudgetState = "OK"
	StateSoftExceeded BudgetState = "SOFT_EXCEEDED"
	StateHardExceeded BudgetState = "HARD_EXCEEDED"
)

// Action is the combined guardrail decision.
type Action string

const (
	ActionAllow     Action = "ALLOW"
	ActionSummarize Action = "SUMMARIZE"
	ActionBlock     Action = "BLOCK"
)

// Default token budget thresholds.
const (
	DefaultSoftLimit = 2000
	DefaultHardLimit = 3500
)

// Severity levels for report violations.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Violation is one structural defect in a compact report.
type Violation struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Validation is the outcome of a report-structure check.
type Validation struct {
	OK              bool
	Violations      []Violation
	EstimatedTokens int
}

var requiredSections = []string{"Status:", "Files:", "Diff-Summary:", "Validation:", "Risks:", "Next:"}

const (
	maxReportChars = 8000
	maxBullets     = 10
)

// EstimateTokens estimates the token count of text with the fixed heuristic
// ceil(char_count / 4). Characters, not bytes, so multibyte reports are not
// over-counted.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

func violation(code, message, severity string) Violation {
	return Violation{Code: code, Message: message, Severity: severity}
}

// ValidateCompactReport checks the structural policy for compact worker
// reports: header line, required sections in order, bulleted Files and
// Diff-Summary sections, no code fences, bounded length and bullet count.
func ValidateCompactReport(text string) Validation {
	var violations []Violation

	lines := strings.Split(text, "\n")
	var firstNonEmpty string
	for _, ln := range lines {
		if s := strings.TrimSpace(ln); s != "" {
			firstNonEmpty = s
			break
		}
	}

	if firstNonEmpty == "" {
		violations = append(violations, violation("EMPTY", "report is empty", SeverityHigh))
	} else if !strings.HasPrefix(firstNonEmpty, "[REPORT ") || !strings.HasSuffix(firstNonEmpty, "]") {
		violations = append(violations, violation("MISSING_REPORT_HEADER", "first line must be [REPORT <task-id>]", SeverityHigh))
	}

	if strings.Contains(text, "```") {
		violations = append(violations, violation("CODE_FENCE_FORBIDDEN", "full code/log paste is forbidden in compact report", SeverityHigh))
	}
	if utf8.RuneCountInString(text) > maxReportChars {
		violations = append(violations, violation("REPORT_TOO_LONG", "report text too long for compact policy", SeverityHigh))
	}

	// First occurrence wins; duplicates of a section are ignored.
	sectionIndex := map[string]int{}
	for idx, ln := range lines {
		stripped := strings.TrimSpace(ln)
		for _, sec := range requiredSections {
			if strings.HasPrefix(stripped, sec) {
				if _, seen := sectionIndex[sec]; !seen {
					sectionIndex[sec] = idx
				}
			}
		}
	}

	for _, sec := range requiredSections {
		if _, ok := sectionIndex[sec]; !ok {
			violations = append(violations, violation("MISSING_SECTION", fmt.Sprintf("missing required section: %s", sec), SeverityHigh))
		}
	}

	// Order check only applies to sections that are present.
	last := -1
	for _, sec := range requiredSections {
		idx, ok := sectionIndex[sec]
		if !ok {
			continue
		}
		if idx < last {
			violations = append(violations, violation("SECTION_ORDER", fmt.Sprintf("section out of order: %s", sec), SeverityMedium))
		}
		last = idx
	}

	bulletCount := 0
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimLeft(ln, " \t"), "- ") {
			bulletCount++
		}
	}
	if bulletCount > maxBullets {
		violations = append(violations, violation("TOO_MANY_BULLETS", "bullet count exceeds policy recommendation (10)", SeverityMedium))
	}

	sectionHasBullet := func(section string) bool {
		start, ok := sectionIndex[section]
		if !ok {
			return false
		}
		end := len(lines)
		for _, sec := range requiredSections {
			if idx, ok := sectionIndex[sec]; ok && idx > start && idx < end {
				end = idx
			}
		}
		for i := start + 1; i < end; i++ {
			if strings.HasPrefix(strings.TrimLeft(lines[i], " \t"), "- ") {
				return true
			}
		}
		return false
	}

	if _, ok := sectionIndex["Files:"]; ok && !sectionHasBullet("Files:") {
		violations = append(violations, violation("FILES_EMPTY", "Files section must contain at least one bullet path", SeverityHigh))
	}
	if _, ok := sectionIndex["Diff-Summary:"]; ok && !sectionHasBullet("Diff-Summary:") {
		violations = append(violations, violation("DIFF_SUMMARY_EMPTY", "Diff-Summary section must contain at least one bullet", SeverityHigh))
	}

	return Validation{
		OK:              len(violations) == 0,
		Violations:      violations,
		EstimatedTokens: EstimateTokens(text),
	}
}

// CheckBudget classifies currentTokens against the limits. Equality with soft
// is OK; equality with hard is SOFT_EXCEEDED.
func CheckBudget(currentTokens, soft, hard int) BudgetState {
	switch {
	case currentTokens > hard:
		return StateHardExceeded
	case currentTokens > soft:
		return StateSoftExceeded
	default:
		return StateOK
	}
}

// DecideAction combines the budget state and report violations into the
// guardrail action.
func DecideAction(state BudgetState, violations []Violation) Action {
	hasSevere := false
	for _, v := range violations {
		if v.Severity == SeverityHigh {
			hasSevere = true
			break
		}
	}
	switch {
	case state == StateHardExceeded || hasSevere:
		return ActionBlock
	case state == StateSoftExceeded || len(violations) > 0:
		return ActionSummarize
	default:
		return ActionAllow
	}
}
