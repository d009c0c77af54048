package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"callboard/internal/calls"
)

type stubRepo struct {
	rows []calls.CallRecord
	err  error

	calls [][2]time.Time
}

func (r *stubRepo) ListBetween(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error) {
	r.calls = append(r.calls, [2]time.Time{from, to})
	if r.err != nil {
		return nil, r.err
	}
	var out []calls.CallRecord
	for _, c := range r.rows {
		if !c.StartedAt.Before(from) && c.StartedAt.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
}

func rec(started time.Time, dir calls.Direction, missed bool, dur int) calls.CallRecord {
	return calls.CallRecord{
		StartedAt:       started,
		Direction:       dir,
		IsMissed:        missed,
		DurationSeconds: dur,
	}
}

func TestSummary_Today(t *testing.T) {
	now := fixedNow()
	repo := &stubRepo{rows: []calls.CallRecord{
		rec(now.Add(-1*time.Hour), calls.DirectionInbound, false, 120),
		rec(now.Add(-2*time.Hour), calls.DirectionInbound, true, 0),
		rec(now.Add(-3*time.Hour), calls.DirectionOutbound, false, 45),
		// Yesterday: inside 7d but outside today.
		rec(now.AddDate(0, 0, -1), calls.DirectionInbound, true, 30),
	}}
	svc := NewService(repo)
	svc.SetClock(fixedNow)

	got, err := svc.Summary(context.Background(), RangeToday)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.TotalIncoming != 2 || got.TotalOutgoing != 1 || got.TotalMissed != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.TotalDurationSeconds != 165 {
		t.Fatalf("expected 165s total duration, got %d", got.TotalDurationSeconds)
	}
	if got.TotalLast7Days != 4 {
		t.Fatalf("expected 4 calls over trailing week, got %d", got.TotalLast7Days)
	}
}

func TestSummary_SevenDayRangeSkipsSecondQuery(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	svc.SetClock(fixedNow)

	if _, err := svc.Summary(context.Background(), Range7Days); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("expected a single repository query, got %d", len(repo.calls))
	}
}

func TestSummary_InvalidRange(t *testing.T) {
	svc := NewService(&stubRepo{})
	if _, err := svc.Summary(context.Background(), Range("90d")); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestSummary_RepoErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&stubRepo{err: boom})
	svc.SetClock(fixedNow)
	if _, err := svc.Summary(context.Background(), RangeToday); !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
}

func TestTimeseries_ZeroFillsDays(t *testing.T) {
	now := fixedNow()
	repo := &stubRepo{rows: []calls.CallRecord{
		rec(now.AddDate(0, 0, -1), calls.DirectionInbound, true, 0),
		rec(now.AddDate(0, 0, -1).Add(time.Hour), calls.DirectionInbound, false, 60),
		rec(now.AddDate(0, 0, -6), calls.DirectionInbound, false, 10),
	}}
	svc := NewService(repo)
	svc.SetClock(fixedNow)

	got, err := svc.Timeseries(context.Background(), Range7Days)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Points) != 8 {
		t.Fatalf("expected 8 daily buckets, got %d", len(got.Points))
	}

	byDate := map[string]TimeseriesPoint{}
	for _, p := range got.Points {
		byDate[p.Date] = p
	}
	busy := now.AddDate(0, 0, -1).Format("2006-01-02")
	if p := byDate[busy]; p.Total != 2 || p.Missed != 1 {
		t.Fatalf("unexpected bucket for %s: %+v", busy, p)
	}
	quiet := now.AddDate(0, 0, -2).Format("2006-01-02")
	if p := byDate[quiet]; p.Total != 0 || p.Missed != 0 {
		t.Fatalf("expected zero-filled bucket for %s, got %+v", quiet, p)
	}
}
