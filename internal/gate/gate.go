// Package gate implements the deterministic review gate: criteria coverage
// plus failure/block marker scanning over a normalized worker report, with an
// optional UI smoke result composed on top.
package gate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ManuGH/taskq/internal/uismoke"
)

// Verdict outcomes.
const (
	Pass  = "PASS"
	Retry = "RETRY"
	Block = "BLOCK"
)

// DefaultMaxRetries bounds RETRY verdicts before promotion to BLOCK.
const DefaultMaxRetries = 3

// Markers carry leading (and for "fail" trailing) spaces so substring checks
// against the space-padded report cannot hit prefixes of other words.
var failureMarkers = []string{
	" fail ",
	" failed",
	" error",
	" exception",
	" incomplete",
	" not done",
	" todo",
	" missing",
}

var blockMarkers = []string{
	" blocker",
	" blocked",
	" cannot proceed",
	" escalation",
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {},
	"this": {}, "into": {}, "have": {}, "has": {}, "been": {}, "were": {},
	"was": {}, "will": {}, "shall": {}, "must": {}, "should": {}, "able": {},
	"ensure": {}, "verify": {}, "check": {}, "tests": {}, "test": {},
}

var (
	wordRe     = regexp.MustCompile(`[a-zA-Z0-9_\-/]{3,}`)
	spaceRe    = regexp.MustCompile(`\s+`)
	splitterRe = regexp.MustCompile(`[;•]+`)
)

const maxKeywords = 6

// Verdict is the review gate decision for one report.
type Verdict struct {
	Verdict       string
	Reasons       []string
	MissingChecks []string
	CoveredChecks int
	TotalChecks   int
}

type criteriaItem struct {
	raw      string
	keywords []string
}

// normalize lowercases, collapses whitespace runs to single spaces, and pads
// with one leading and trailing space. The exact shape matters: markers and
// keyword probes rely on it.
func normalize(text string) string {
	return " " + strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(text), " ")) + " "
}

func splitCriteria(successCriteria string) []string {
	text := strings.TrimSpace(successCriteria)
	if text == "" {
		return nil
	}
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, " -\t")
		if line == "" {
			continue
		}
		for _, part := range splitterRe.Split(line, -1) {
			if part = strings.TrimSpace(part); part != "" {
				chunks = append(chunks, part)
			}
		}
	}
	return chunks
}

func keywords(item string) []string {
	words := wordRe.FindAllString(strings.ToLower(item), -1)
	seen := map[string]struct{}{}
	var out []string
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func covered(item criteriaItem, normalizedReport string) bool {
	phrase := normalize(item.raw)
	if strings.TrimSpace(phrase) != "" && strings.Contains(normalizedReport, phrase) {
		return true
	}
	for _, kw := range item.keywords {
		if strings.Contains(normalizedReport, " "+kw+" ") {
			return true
		}
	}
	return false
}

func findMarkers(normalizedReport string, markers []string) []string {
	var found []string
	for _, m := range markers {
		if strings.Contains(normalizedReport, m) {
			found = append(found, strings.TrimSpace(m))
		}
	}
	return found
}

// Evaluate maps (criteria, report, attempts) to a verdict. An item counts as
// covered when its normalized whole phrase appears in the report or any of
// its keywords appears surrounded by spaces.
func Evaluate(successCriteria, reportText string, attemptCount, maxRetries int) Verdict {
	normalizedReport := normalize(reportText)

	var items []criteriaItem
	for _, raw := range splitCriteria(successCriteria) {
		items = append(items, criteriaItem{raw: raw, keywords: keywords(raw)})
	}

	coveredCount := 0
	var missing []string
	for _, item := range items {
		if covered(item, normalizedReport) {
			coveredCount++
		} else {
			missing = append(missing, item.raw)
		}
	}

	failures := findMarkers(normalizedReport, failureMarkers)
	blocks := findMarkers(normalizedReport, blockMarkers)

	var reasons []string
	var verdict string
	switch {
	case len(blocks) > 0:
		reasons = append(reasons, "explicit_block_marker:"+strings.Join(blocks, ","))
		verdict = Block
	case len(missing) == 0 && len(failures) == 0:
		reasons = append(reasons, "all_success_criteria_covered")
		verdict = Pass
	default:
		if len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("missing_checks:%d", len(missing)))
		}
		if len(failures) > 0 {
			reasons = append(reasons, "failure_markers:"+strings.Join(failures, ","))
		}
		verdict = Retry
	}

	if verdict == Retry && attemptCount >= maxRetries {
		verdict = Block
		reasons = append(reasons, fmt.Sprintf("retry_limit_reached:%d/%d", attemptCount, maxRetries))
	}

	return Verdict{
		Verdict:       verdict,
		Reasons:       reasons,
		MissingChecks: missing,
		CoveredChecks: coveredCount,
		TotalChecks:   len(items),
	}
}

// ApplyUIGate composes a UI smoke result onto a verdict. A passing UI check
// only appends a reason; a failing one adds ui_validation to the missing
// checks and upgrades the verdict to at least RETRY. A PASS never survives a
// UI failure.
func ApplyUIGate(v Verdict, ui *uismoke.Result, attemptCount, maxRetries int) Verdict {
	if ui == nil {
		return v
	}

	out := Verdict{
		Verdict:       v.Verdict,
		Reasons:       append([]string{}, v.Reasons...),
		MissingChecks: append([]string{}, v.MissingChecks...),
		CoveredChecks: v.CoveredChecks,
		TotalChecks:   v.TotalChecks,
	}

	if ui.OK {
		out.Reasons = append(out.Reasons, "ui_validation_passed")
		return out
	}

	uiReasons := ui.Reasons
	if len(uiReasons) == 0 {
		uiReasons = []string{"ui_validation_failed"}
	}
	out.Reasons = append(out.Reasons, "ui:"+strings.Join(uiReasons, ";"))

	hasUICheck := false
	for _, m := range out.MissingChecks {
		if m == "ui_validation" {
			hasUICheck = true
			break
		}
	}
	if !hasUICheck {
		out.MissingChecks = append(out.MissingChecks, "ui_validation")
	}

	if out.Verdict != Block {
		if attemptCount >= maxRetries {
			out.Verdict = Block
			out.Reasons = append(out.Reasons, fmt.Sprintf("retry_limit_reached:%d/%d", attemptCount, maxRetries))
		} else {
			out.Verdict = Retry
		}
	}

	return out
}
