package reporting

import (
	"context"
	"errors"
	"time"

	"callboard/internal/calls"
)

var ErrInvalidRange = errors.New("reporting: invalid range")

// Repository abstracts data access for reporting. Both call record stores
// satisfy it.
type Repository interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the time source; tests use a fixed clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Summary(ctx context.Context, rng Range) (Summary, error) {
	now := s.now().UTC()
	from, to, ok := rng.Resolve(now)
	if !ok {
		return Summary{}, ErrInvalidRange
	}

	rows, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: rng}
	for _, c := range rows {
		switch c.Direction {
		case calls.DirectionOutbound:
			out.TotalOutgoing++
		default:
			out.TotalIncoming++
		}
		if c.IsMissed {
			out.TotalMissed++
		}
		out.TotalDurationSeconds += c.DurationSeconds
	}

	if rng == Range7Days {
		out.TotalLast7Days = len(rows)
		return out, nil
	}
	weekFrom, weekTo, _ := Range7Days.Resolve(now)
	weekRows, err := s.repo.ListBetween(ctx, weekFrom, weekTo)
	if err != nil {
		return Summary{}, err
	}
	out.TotalLast7Days = len(weekRows)
	return out, nil
}

// Timeseries buckets the range into calendar days (UTC). Every day in the
// range gets a point, zero-filled when no calls landed on it.
func (s *Service) Timeseries(ctx context.Context, rng Range) (Timeseries, error) {
	from, to, ok := rng.Resolve(s.now().UTC())
	if !ok {
		return Timeseries{}, ErrInvalidRange
	}

	rows, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return Timeseries{}, err
	}

	const day = "2006-01-02"
	byDay := make(map[string]*TimeseriesPoint)
	var points []TimeseriesPoint

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for d := start; d.Before(to); d = d.AddDate(0, 0, 1) {
		points = append(points, TimeseriesPoint{Date: d.Format(day)})
	}
	for i := range points {
		byDay[points[i].Date] = &points[i]
	}

	for _, c := range rows {
		p, ok := byDay[c.StartedAt.UTC().Format(day)]
		if !ok {
			continue
		}
		p.Total++
		if c.IsMissed {
			p.Missed++
		}
	}

	return Timeseries{Range: rng, Points: points}, nil
}
