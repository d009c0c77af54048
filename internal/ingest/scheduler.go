package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler enqueues one sync trigger at a fixed interval. It deliberately
// does not check whether a previous run is in flight: backpressure is
// absorbed by the worker's serialized queue, and back-to-back runs are
// harmless because each run is idempotent.
type Scheduler struct {
	interval time.Duration
	enabled  bool
	worker   *Worker
	cron     *cron.Cron
	log      *slog.Logger
}

func NewScheduler(interval time.Duration, enabled bool, worker *Worker, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		enabled:  enabled,
		worker:   worker,
		cron:     cron.New(),
		log:      log,
	}
}

func (s *Scheduler) Start() {
	if !s.enabled {
		s.log.Info("scheduler disabled")
		return
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		s.log.Error("failed to schedule sync", "interval", s.interval.String(), "err", err)
		return
	}

	s.log.Info("scheduler started", "interval", s.interval.String())
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.worker.TriggerSync() {
		s.log.Debug("trigger backlog full, tick dropped")
	}
}
