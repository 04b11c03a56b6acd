package service

import (
	"context"
	"errors"
	"time"

	"github.com/yourname/sleepcoach/internal"
)

const (
	WeekDays  = 7
	MonthDays = 30
)

var errDaysNotPositive = errors.New("days must be positive")

type SessionRanger interface {
	ListByDateRange(ctx context.Context, start, end string) ([]internal.SleepSession, error)
}

type GuidanceRanger interface {
	LookupRange(ctx context.Context, start, end string) ([]internal.Guidance, error)
}

type PeriodAdvisor interface {
	RequestForPeriod(ctx context.Context, start, end string, sessions []internal.SleepSession) (*internal.Guidance, error)
}

// Entry is one session with the session guidance stored for its date, if any.
type Entry struct {
	Session  internal.SleepSession `json:"session"`
	Guidance *internal.Guidance    `json:"guidance,omitempty"`
}

// Window is an inclusive date range.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodService joins sessions with guidance by exact date. Nothing is cached.
type PeriodService struct {
	sessions SessionRanger
	guidance GuidanceRanger
	advisor  PeriodAdvisor
	now      func() time.Time
}

func NewPeriodService(sessions SessionRanger, guidance GuidanceRanger, advisor PeriodAdvisor) *PeriodService {
	return &PeriodService{sessions: sessions, guidance: guidance, advisor: advisor, now: time.Now}
}

// RecentWindow is the days-long window ending today, both ends included.
func (s *PeriodService) RecentWindow(days int) (Window, error) {
	if days <= 0 {
		return Window{}, internal.Invalid(errDaysNotPositive)
	}
	today := s.now()
	return Window{
		Start: today.AddDate(0, 0, -(days - 1)).Format(internal.DateLayout),
		End:   today.Format(internal.DateLayout),
	}, nil
}

func (s *PeriodService) Recent(ctx context.Context, days int) ([]Entry, error) {
	w, err := s.RecentWindow(days)
	if err != nil {
		return nil, err
	}
	return s.Range(ctx, w.Start, w.End)
}

func (s *PeriodService) Week(ctx context.Context) ([]Entry, error) {
	return s.Recent(ctx, WeekDays)
}

func (s *PeriodService) Month(ctx context.Context) ([]Entry, error) {
	return s.Recent(ctx, MonthDays)
}

func (s *PeriodService) ExactDate(ctx context.Context, date string) ([]Entry, error) {
	return s.Range(ctx, date, date)
}

// Range returns the sessions in [start, end], newest date first.
func (s *PeriodService) Range(ctx context.Context, start, end string) ([]Entry, error) {
	sessions, err := s.sessions.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	rows, err := s.guidance.LookupRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// rows are newest first, so the first row per date wins
	byDate := make(map[string]*internal.Guidance, len(rows))
	for i := range rows {
		g := &rows[i]
		if g.Kind != internal.GuidanceSession {
			continue
		}
		if _, ok := byDate[g.Date]; !ok {
			byDate[g.Date] = g
		}
	}

	entries := make([]Entry, 0, len(sessions))
	for _, sess := range sessions {
		entries = append(entries, Entry{Session: sess, Guidance: byDate[sess.Date]})
	}
	return entries, nil
}

// RequestAdvice asks for a summary over the recent window. It returns
// ErrNoData when the window holds no completed session.
func (s *PeriodService) RequestAdvice(ctx context.Context, days int) (*internal.Guidance, error) {
	w, err := s.RecentWindow(days)
	if err != nil {
		return nil, err
	}
	return s.RequestAdviceForRange(ctx, w.Start, w.End)
}

func (s *PeriodService) RequestAdviceForRange(ctx context.Context, start, end string) (*internal.Guidance, error) {
	sessions, err := s.sessions.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.advisor.RequestForPeriod(ctx, start, end, sessions)
}
