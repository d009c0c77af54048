package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callboard/internal/calls"
)

// Debug modes. dry_run inspects without writing; force_sync runs the real
// ingestion path and returns its trail. This is an operational diagnostic,
// not a stable public contract.
type DebugMode string

const (
	DebugDryRun    DebugMode = "dry_run"
	DebugForceSync DebugMode = "force_sync"
)

var ErrUnknownDebugMode = errors.New("ingest: unknown debug mode")

// DebugReport is the structured result of a debug invocation.
type DebugReport struct {
	RunID string    `json:"run_id"`
	Mode  DebugMode `json:"mode"`

	Configured bool    `json:"configured"`
	Window     *Window `json:"window,omitempty"`

	// Listing breakdown (dry_run).
	TotalRefs   int `json:"total_refs"`
	KnownRefs   int `json:"known_refs"`
	PendingRefs int `json:"pending_refs"`

	// Run counts (force_sync).
	NewCount   int `json:"new_count"`
	ErrorCount int `json:"error_count"`

	Trail []string `json:"trail"`
}

// Trail collects timestamped step lines for debug output. A nil Trail is
// safe to use and records nothing, so the normal run path pays no cost.
type Trail struct {
	clock func() time.Time
	steps []string
}

func NewTrail(clock func() time.Time) *Trail {
	if clock == nil {
		clock = time.Now
	}
	return &Trail{clock: clock}
}

func (t *Trail) Step(format string, args ...any) {
	if t == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	t.steps = append(t.steps, fmt.Sprintf("%s %s", t.clock().UTC().Format("15:04:05.000"), line))
}

func (t *Trail) Steps() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.steps))
	copy(out, t.steps)
	return out
}

// Debug runs one diagnostic invocation. days <= 0 means no window override.
func (w *Worker) Debug(ctx context.Context, days int, mode DebugMode) (DebugReport, error) {
	report := DebugReport{
		RunID: uuid.NewString(),
		Mode:  mode,
	}
	trail := NewTrail(w.clock)

	switch mode {
	case DebugDryRun:
		if err := w.dryRun(ctx, days, &report, trail); err != nil {
			return DebugReport{}, err
		}
	case DebugForceSync:
		if settings, err := w.store.GetSettings(ctx); err == nil {
			report.Configured = settings.Configured()
		}
		res, err := w.runOnce(ctx, runOptions{overrideDays: days, trail: trail})
		report.NewCount = res.NewCount
		report.ErrorCount = res.ErrorCount
		if err != nil {
			// The trail already carries the failure; surface it in the
			// report rather than dropping the diagnostic.
			trail.Step("run aborted: %v", err)
		}
	default:
		return DebugReport{}, fmt.Errorf("%w: %q", ErrUnknownDebugMode, mode)
	}

	report.Trail = trail.Steps()
	return report, nil
}

// dryRun reports the computed window and listing counts without fetching
// details or writing anything.
func (w *Worker) dryRun(ctx context.Context, days int, report *DebugReport, trail *Trail) error {
	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.Configured() {
		trail.Step("provider account not configured")
		return nil
	}
	report.Configured = true

	win := ComputeWindow(w.clock().UTC(), settings.LastSyncAt, days)
	report.Window = &win
	trail.Step("window %s: %s .. %s", win.Reason, win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339))

	refs, err := w.listWindow(ctx, w.clients(settings), settings, win)
	if err != nil {
		trail.Step("listing failed: %v", err)
		return nil
	}

	report.TotalRefs = len(refs)
	for _, ref := range refs {
		_, err := w.store.FindByExternalID(ctx, ref.ID)
		switch {
		case err == nil:
			report.KnownRefs++
		case errors.Is(err, calls.ErrNotFound):
			report.PendingRefs++
		default:
			trail.Step("lookup %s failed: %v", ref.ID, err)
		}
	}
	trail.Step("listed %d reference(s): %d known, %d pending", report.TotalRefs, report.KnownRefs, report.PendingRefs)
	return nil
}
