package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, limit int) ([]Event, error)
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service logs operational audit information.
//
// Callers should treat audit logging as best-effort: the Log* helpers never
// return an error, they record the failure and move on.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Recent returns the newest events, capped at limit.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) record(ctx context.Context, e Event) {
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", e.Type, "err", err)
	}
}

// LogSettingsUpdate records a provider settings change. Metadata should be
// the redacted settings JSON, never raw credentials.
func (s *Service) LogSettingsUpdate(ctx context.Context, actor, ip, metadata string) {
	s.record(ctx, Event{
		Type:      EventTypeSettingsUpdate,
		Actor:     actor,
		IPAddress: ip,
		Message:   "provider settings updated",
		Metadata:  metadata,
	})
}

func (s *Service) LogConnectionTest(ctx context.Context, actor, ip string, ok bool) {
	msg := "provider connection test succeeded"
	if !ok {
		msg = "provider connection test failed"
	}
	s.record(ctx, Event{
		Type:      EventTypeConnectionTest,
		Actor:     actor,
		IPAddress: ip,
		Message:   msg,
	})
}

func (s *Service) LogManualSync(ctx context.Context, actor, ip string, accepted bool) {
	msg := "manual sync triggered"
	if !accepted {
		msg = "manual sync dropped, backlog full"
	}
	s.record(ctx, Event{
		Type:      EventTypeManualSync,
		Actor:     actor,
		IPAddress: ip,
		Message:   msg,
	})
}

func (s *Service) LogDebugSync(ctx context.Context, actor, ip, mode, runID string) {
	s.record(ctx, Event{
		Type:      EventTypeDebugSync,
		Actor:     actor,
		IPAddress: ip,
		Message:   "debug sync " + mode,
		Metadata:  `{"run_id":"` + runID + `"}`,
	})
}

func (s *Service) LogRosterChange(ctx context.Context, actor, ip string, teamLeadID int64, message string) {
	s.record(ctx, Event{
		Type:       EventTypeRosterChange,
		Actor:      actor,
		IPAddress:  ip,
		TeamLeadID: teamLeadID,
		Message:    message,
	})
}
