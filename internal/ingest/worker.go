package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callboard/internal/calls"
	"callboard/internal/events"
	"callboard/internal/provider"
)

// triggerBacklog bounds pending triggers. Ticks arriving while the backlog is
// full are dropped; each run is idempotent so a dropped tick costs nothing.
const triggerBacklog = 16

// Result summarizes one sync run.
type Result struct {
	NewCount   int `json:"new_count"`
	ErrorCount int `json:"error_count"`
}

// ClientFactory builds a provider client from the current settings row.
// Credentials live in settings, so the client is rebuilt per run and picks up
// edits without a restart.
type ClientFactory func(s calls.ProviderSettings) provider.Client

// Worker owns the receive end of the trigger queue and executes sync runs
// strictly one at a time.
//
// Failure taxonomy:
// - unconfigured provider account: silent no-op, not an error
// - listing failure: whole-run abort; last_error set, last_sync_at untouched
// - item failure (fetch, map or write): isolated; the run continues
type Worker struct {
	store   calls.Store
	clients ClientFactory
	pub     events.Publisher
	log     *slog.Logger

	triggers chan struct{}
	clock    func() time.Time

	// runMu serializes runs between the queue drain and force-sync
	// diagnostics.
	runMu sync.Mutex
}

func NewWorker(store calls.Store, clients ClientFactory, pub events.Publisher, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:    store,
		clients:  clients,
		pub:      pub,
		log:      log,
		triggers: make(chan struct{}, triggerBacklog),
		clock:    time.Now,
	}
}

// SetClock overrides the time source; tests use a fixed clock.
func (w *Worker) SetClock(clock func() time.Time) { w.clock = clock }

// TriggerSync enqueues one run without blocking and reports whether the
// trigger was accepted. Both the scheduler and the manual endpoint go through
// here.
func (w *Worker) TriggerSync() bool {
	select {
	case w.triggers <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run drains the trigger queue until ctx is cancelled. The stop signal is
// observed between runs only, so an in-flight run always completes.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("sync worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sync worker stopped")
			return
		case <-w.triggers:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error("sync run failed", "err", err)
			}
		}
	}
}

// RunOnce executes a single sync run. It is exported for the debug force
// path; normal operation goes through the queue.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	return w.runOnce(ctx, runOptions{})
}

type runOptions struct {
	overrideDays int
	trail        *Trail
}

func (w *Worker) runOnce(ctx context.Context, opts runOptions) (Result, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Configured() {
		w.log.Debug("provider account not configured, skipping run")
		opts.trail.Step("provider account not configured, nothing to do")
		return Result{}, nil
	}

	win := ComputeWindow(w.clock().UTC(), settings.LastSyncAt, opts.overrideDays)
	opts.trail.Step("window %s: %s .. %s", win.Reason, win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339))

	client := w.clients(settings)

	refs, err := w.listWindow(ctx, client, settings, win)
	if err != nil {
		msg := err.Error()
		if uerr := w.store.UpdateCursor(ctx, nil, &msg); uerr != nil {
			w.log.Error("cursor error update failed", "err", uerr)
		}
		w.publish(ctx, events.SyncError(msg))
		opts.trail.Step("listing failed: %s", msg)
		return Result{}, fmt.Errorf("list consumptions: %w", err)
	}
	opts.trail.Step("listed %d reference(s)", len(refs))

	var (
		res      Result
		firstMsg string
	)
	failItem := func(ref consumptionRef, err error) {
		res.ErrorCount++
		msg := err.Error()
		if firstMsg == "" {
			firstMsg = msg
		}
		w.log.Warn("sync item failed", "external_id", ref.ID, "service", ref.Service, "err", err)
		w.publish(ctx, events.SyncItemError(ref.ID, msg))
		opts.trail.Step("item %s failed: %s", ref.ID, msg)
	}

	for _, ref := range refs {
		_, err := w.store.FindByExternalID(ctx, ref.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, calls.ErrNotFound) {
			failItem(ref, fmt.Errorf("dedup lookup: %w", err))
			continue
		}

		raw, err := client.GetDetail(ctx, ref.Service, ref.ID)
		if err != nil {
			failItem(ref, err)
			continue
		}

		rec, err := MapPayload(raw, ref.ID)
		if err != nil {
			failItem(ref, err)
			continue
		}

		// Each item commits individually so a mid-run crash loses nothing
		// already written.
		if err := w.store.Insert(ctx, &rec); err != nil {
			if errors.Is(err, calls.ErrDuplicate) {
				continue
			}
			failItem(ref, err)
			continue
		}

		res.NewCount++
		w.publish(ctx, events.NewCall(rec.ID, rec.ExternalID))
		opts.trail.Step("ingested %s", rec.ExternalID)
	}

	// The cursor advances even when items failed: the failures are recorded,
	// and re-listing the same window would re-fail the same items.
	now := w.clock().UTC()
	var lastErr *string
	if res.ErrorCount > 0 {
		s := fmt.Sprintf("%d item(s) failed: %s", res.ErrorCount, firstMsg)
		lastErr = &s
	}
	if err := w.store.UpdateCursor(ctx, &now, lastErr); err != nil {
		w.log.Error("cursor update failed", "err", err)
	}

	w.publish(ctx, events.SyncComplete(res.NewCount, res.ErrorCount))
	if res.NewCount > 0 {
		w.publish(ctx, events.SummaryChanged())
	}
	opts.trail.Step("run complete: %d new, %d failed", res.NewCount, res.ErrorCount)

	w.log.Info("sync run complete",
		"window_reason", win.Reason,
		"new_count", res.NewCount,
		"error_count", res.ErrorCount,
	)
	return res, nil
}

type consumptionRef struct {
	Service string
	ID      string
}

// listWindow enumerates consumption references across every polled service.
// Any listing error aborts the whole run; the caller preserves the cursor.
func (w *Worker) listWindow(ctx context.Context, client provider.Client, settings calls.ProviderSettings, win Window) ([]consumptionRef, error) {
	services := settings.Services()
	if len(services) == 0 {
		discovered, err := client.ListServices(ctx)
		if err != nil {
			return nil, err
		}
		services = discovered
	}

	var refs []consumptionRef
	for _, svc := range services {
		ids, err := client.ListConsumptions(ctx, svc, &win.Start, &win.End)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			refs = append(refs, consumptionRef{Service: svc, ID: id})
		}
	}
	return refs, nil
}

func (w *Worker) publish(ctx context.Context, e events.Event) {
	if w.pub == nil {
		return
	}
	w.pub.Publish(ctx, e)
}
