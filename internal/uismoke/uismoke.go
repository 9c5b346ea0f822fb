// Package uismoke runs the minimal browser smoke check: open a URL, take a
// snapshot, and require a set of terms in the snapshot text. The external
// command is invoked through an injectable Runner so tests never spawn a
// browser.
package uismoke

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// tool is the external browser-automation binary.
const tool = "playwright-cli"

// Exit codes the default runner maps onto command failures.
const (
	rcCommandNotFound = 127
	rcTimeout         = 124
)

// Runner executes one command attempt and returns (exit code, stdout, stderr).
type Runner func(ctx context.Context, argv []string, timeout time.Duration) (int, string, string)

// Result is the smoke-check outcome consumed by the review gate.
type Result struct {
	OK              bool
	Reasons         []string
	Missing         []string
	SnapshotExcerpt string
}

const excerptLimit = 400

// DefaultRunner runs argv via exec with the given timeout. A missing binary
// maps to rc=127 and a timeout to rc=124 with stderr "timeout", matching the
// gate's downgrade contract.
func DefaultRunner(ctx context.Context, argv []string, timeout time.Duration) (int, string, string) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...) // #nosec G204 -- fixed tool name, operator args
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return rcTimeout, stdout.String(), "timeout"
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String()
		}
		return rcCommandNotFound, "", fmt.Sprintf("command_not_found:%s", argv[0])
	}
	return 0, stdout.String(), stderr.String()
}

// Params configures one smoke run.
type Params struct {
	URL           string
	RequiredTerms []string
	Timeout       time.Duration
	Session       string // optional tool session name
	Runner        Runner // nil means DefaultRunner
}

func sessionArgs(session string) []string {
	if session == "" {
		return nil
	}
	return []string{fmt.Sprintf("--session=%s", session)}
}

// Validate performs the smoke flow: open <url>, snapshot, then verify each
// required term appears case-insensitively in the snapshot output.
func Validate(ctx context.Context, p Params) Result {
	run := p.Runner
	if run == nil {
		run = DefaultRunner
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	openCmd := append(append([]string{tool}, sessionArgs(p.Session)...), "open", p.URL)
	rc, out, errOut := run(ctx, openCmd, timeout)
	if rc != 0 {
		return Result{
			OK:      false,
			Reasons: []string{"ui_open_failed:" + failReason(out, errOut, rc, "open")},
			Missing: cleanTerms(p.RequiredTerms),
		}
	}

	snapshotCmd := append(append([]string{tool}, sessionArgs(p.Session)...), "snapshot")
	rc, out, errOut = run(ctx, snapshotCmd, timeout)
	if rc != 0 {
		return Result{
			OK:      false,
			Reasons: []string{"ui_snapshot_failed:" + failReason(out, errOut, rc, "snapshot")},
			Missing: cleanTerms(p.RequiredTerms),
		}
	}

	snapshot := out
	if errOut != "" {
		snapshot += "\n" + errOut
	}

	missing := missingTerms(snapshot, p.RequiredTerms)
	if len(missing) > 0 {
		return Result{
			OK:              false,
			Reasons:         []string{"ui_missing_terms:" + strings.Join(missing, ",")},
			Missing:         missing,
			SnapshotExcerpt: excerpt(snapshot),
		}
	}

	return Result{
		OK:              true,
		Reasons:         []string{"ui_smoke_passed"},
		SnapshotExcerpt: excerpt(snapshot),
	}
}

func failReason(out, errOut string, rc int, phase string) string {
	reason := strings.TrimSpace(errOut)
	if reason == "" {
		reason = strings.TrimSpace(out)
	}
	if reason == "" {
		reason = fmt.Sprintf("%s_failed_rc=%d", phase, rc)
	}
	return reason
}

func cleanTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func missingTerms(snapshot string, terms []string) []string {
	lower := strings.ToLower(snapshot)
	var missing []string
	for _, t := range cleanTerms(terms) {
		if !strings.Contains(lower, strings.ToLower(t)) {
			missing = append(missing, t)
		}
	}
	return missing
}

func excerpt(s string) string {
	if len(s) > excerptLimit {
		return s[:excerptLimit]
	}
	return s
}
