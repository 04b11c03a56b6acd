package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/policy"
	"github.com/yourname/sleepcoach/internal/storage"
)

const (
	DefaultHistoryLimit = 5
	densityWindowDays   = 7
	medicationGateKey   = "medication-gate"
)

var ErrClosed = errors.New("advice service is closed")

// ProfileSource hands out the profile once it is safe to read.
type ProfileSource interface {
	Current(ctx context.Context) (*internal.UserProfile, error)
}

// Store is the slice of the storage gateway the orchestrator reads and writes.
type Store interface {
	storage.GuidanceRepository
	ListSessions(ctx context.Context, start, end string) ([]internal.SleepSession, error)
}

// Callback receives the outcome of an asynchronous request exactly once.
type Callback func(*internal.Guidance, error)

type Options struct {
	MaxRunes      int
	PromptChars   int
	Language      string
	Timeout       time.Duration
	RatePerMinute int
	GateWindow    time.Duration
	HistoryLimit  int
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRunes <= 0 {
		o.MaxRunes = 1000
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.GateWindow <= 0 {
		o.GateWindow = policy.DefaultGateWindow
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Service struct {
	store     Store
	generator Generator
	profiles  ProfileSource
	logger    internal.Logger
	opts      Options
	limiter   *rate.Limiter
	locks     *keyedMutex

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewService(store Store, generator Generator, profiles ProfileSource, logger internal.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}
	return &Service{
		store:     store,
		generator: generator,
		profiles:  profiles,
		logger:    logger,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		locks:     newKeyedMutex(),
	}
}

// RequestForSession generates and stores guidance for a completed session.
// Nothing is written when generation fails.
func (s *Service) RequestForSession(ctx context.Context, session *internal.SleepSession) (*internal.Guidance, error) {
	if session == nil || session.IsOpen() || session.WakeAt == nil {
		return nil, internal.Invalid(errors.New("session is not complete"))
	}
	profile, err := s.profiles.Current(ctx)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, string(internal.GuidanceSession)+":"+session.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	recent := s.recentSessions(ctx, *session)
	return s.generate(ctx, profile, recent, func(history []internal.Guidance) (string, error) {
		return renderSessionPayload(*session, history)
	}, internal.Guidance{Date: session.Date, Kind: internal.GuidanceSession})
}

// RequestForSessionAsync runs RequestForSession off the caller's goroutine and
// reports through cb. Cancelling ctx after the call returns does not abort it.
func (s *Service) RequestForSessionAsync(ctx context.Context, session *internal.SleepSession, cb Callback) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if cb != nil {
			cb(nil, ErrClosed)
		}
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	snapshot := *session
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.inflight.Done()
		g, err := s.RequestForSession(ctx, &snapshot)
		if err != nil {
			s.logger.Warnf("guidance for %s not generated: %v", snapshot.Date, err)
		}
		if cb != nil {
			cb(g, err)
		}
	}()
}

// RequestForPeriod summarises the completed sessions in [start, end]. It
// returns ErrNoData without calling the generator when there are none.
func (s *Service) RequestForPeriod(ctx context.Context, start, end string, sessions []internal.SleepSession) (*internal.Guidance, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	complete := make([]internal.SleepSession, 0, len(sessions))
	for _, ss := range sessions {
		if !ss.IsOpen() && ss.Date >= start && ss.Date <= end {
			complete = append(complete, ss)
		}
	}
	if len(complete) == 0 {
		return nil, internal.ErrNoData
	}
	profile, err := s.profiles.Current(ctx)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, string(internal.GuidancePeriod)+":"+start+".."+end)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.generate(ctx, profile, complete, func(history []internal.Guidance) (string, error) {
		return renderPeriodPayload(start, end, complete, history)
	}, internal.Guidance{Date: end, RangeStart: start, Kind: internal.GuidancePeriod})
}

func (s *Service) generate(
	ctx context.Context,
	profile *internal.UserProfile,
	sessions []internal.SleepSession,
	payload func([]internal.Guidance) (string, error),
	out internal.Guidance,
) (*internal.Guidance, error) {
	// Requests that may discuss medication are serialised so the gate sees
	// every earlier mention.
	if policy.SelectMedication(profile.MedicationStatus, profile.ReductionIntent) == policy.MedicationCautiousReduction {
		unlock, err := s.locks.Lock(ctx, medicationGateKey)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	req := policy.Request{
		Now:             s.opts.Now(),
		GateWindow:      s.opts.GateWindow,
		NegativeDensity: policy.NegativeDensity(sessions),
	}
	last, err := s.store.LastMedicationMention(ctx)
	if err != nil {
		s.logger.Warnf("medication mention history unavailable, topic stays closed: %v", err)
	} else {
		req.LastMedicationMention = last
		req.MentionHistoryKnown = true
	}
	decision := policy.Decide(profile, req)

	history, err := s.store.ListRecentGuidance(ctx, s.opts.HistoryLimit)
	if err != nil {
		s.logger.Warnf("recent guidance unavailable: %v", err)
		history = nil
	}
	user, err := payload(history)
	if err != nil {
		return nil, err
	}
	system := renderSystem(decision, promptOptions{Language: s.opts.Language, PromptChars: s.opts.PromptChars})

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrGenerationFailed, err)
	}
	genCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	text, err := s.generator.Generate(genCtx, system, user)
	if err != nil {
		s.logger.Warnf("generation failed for %s: %v", out.Date, err)
		return nil, fmt.Errorf("%w: %v", internal.ErrGenerationFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warnf("generation for %s returned empty text", out.Date)
		return nil, fmt.Errorf("%w: empty response", internal.ErrGenerationFailed)
	}

	out.ID = uuid.NewString()
	out.Text = Truncate(text, s.opts.MaxRunes)
	out.MentionsMedication = decision.MedicationTopicAllowed
	out.CreatedAt = s.opts.Now()
	if err := s.store.SaveGuidance(ctx, &out); err != nil {
		s.logger.Errorf("failed to save guidance for %s: %v", out.Date, err)
		return nil, err
	}
	return &out, nil
}

// recentSessions is the density window ending at the session's date. The
// session itself is always part of it.
func (s *Service) recentSessions(ctx context.Context, session internal.SleepSession) []internal.SleepSession {
	end, err := time.Parse(internal.DateLayout, session.Date)
	if err != nil {
		return []internal.SleepSession{session}
	}
	start := end.AddDate(0, 0, -(densityWindowDays - 1)).Format(internal.DateLayout)
	rows, err := s.store.ListSessions(ctx, start, session.Date)
	if err != nil {
		s.logger.Warnf("recent sessions unavailable for %s: %v", session.Date, err)
		return []internal.SleepSession{session}
	}
	out := []internal.SleepSession{session}
	for _, r := range rows {
		if r.ID != session.ID {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the newest session guidance for date, or nil when there is none.
func (s *Service) Lookup(ctx context.Context, date string) (*internal.Guidance, error) {
	return s.LookupKind(ctx, date, internal.GuidanceSession)
}

func (s *Service) LookupKind(ctx context.Context, date string, kind internal.GuidanceKind) (*internal.Guidance, error) {
	rows, err := s.LookupAllForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Kind == kind {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// LookupAllForDate returns every guidance row for date, newest first.
func (s *Service) LookupAllForDate(ctx context.Context, date string) ([]internal.Guidance, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return s.store.ListGuidanceByDate(ctx, date)
}

// LookupAll lists every date with at least one guidance row.
func (s *Service) LookupAll(ctx context.Context) ([]string, error) {
	return s.store.ListGuidanceDates(ctx)
}

// LookupRange returns guidance of every kind with start <= date <= end.
func (s *Service) LookupRange(ctx context.Context, start, end string) ([]internal.Guidance, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.store.ListGuidanceInRange(ctx, start, end)
}

func (s *Service) History(ctx context.Context, limit int) ([]internal.Guidance, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListRecentGuidance(ctx, limit)
}

// Close rejects new asynchronous requests and waits for the running ones.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inflight.Wait()
}

func validateDate(date string) error {
	if _, err := time.Parse(internal.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", internal.ErrInvalidTimestamp, date)
	}
	return nil
}

func validateRange(start, end string) error {
	if err := validateDate(start); err != nil {
		return err
	}
	if err := validateDate(end); err != nil {
		return err
	}
	if start > end {
		return internal.Invalid(fmt.Errorf("range start %s is after end %s", start, end))
	}
	return nil
}
