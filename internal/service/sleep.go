package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/advice"
	"github.com/yourname/sleepcoach/internal/storage"
)

var validate = validator.New()

type SleepStartRequest struct {
	Date  string `json:"date" validate:"required"`
	Time  string `json:"time" validate:"required"`
	Notes string `json:"notes,omitempty" validate:"max=4000"`
}

type WakeRequest struct {
	// SessionID is optional; the open session is used when it is empty.
	SessionID       string `json:"session_id,omitempty"`
	Date            string `json:"date" validate:"required"`
	Time            string `json:"time" validate:"required"`
	Satisfaction    int    `json:"satisfaction" validate:"gte=0,lte=100"`
	Quality         int    `json:"quality" validate:"gte=0,lte=100"`
	Dissatisfaction int    `json:"dissatisfaction" validate:"gte=0,lte=100"`
	Anxiety         int    `json:"anxiety" validate:"gte=0,lte=100"`
	Reflection      string `json:"reflection,omitempty" validate:"max=4000"`
}

func ValidateSleepStartRequest(body *SleepStartRequest) error {
	return internal.Invalid(validate.Struct(body))
}

func ValidateWakeRequest(body *WakeRequest) error {
	return internal.Invalid(validate.Struct(body))
}

// Advisor is notified when a session completes.
type Advisor interface {
	RequestForSessionAsync(ctx context.Context, session *internal.SleepSession, cb advice.Callback)
}

// RecordService owns the open → complete lifecycle of sleep sessions.
type RecordService struct {
	repo    storage.SessionRepository
	advisor Advisor
	logger  internal.Logger
	now     func() time.Time

	// mu keeps the single-writer rule: at most one open session.
	mu sync.Mutex
}

func NewRecordService(repo storage.SessionRepository, advisor Advisor, logger internal.Logger) *RecordService {
	return &RecordService{repo: repo, advisor: advisor, logger: logger, now: time.Now}
}

// OpenSession returns the session waiting for a wake time, or nil.
func (s *RecordService) OpenSession(ctx context.Context) (*internal.SleepSession, error) {
	open, err := s.repo.FindOpenSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return open, err
}

func (s *RecordService) RecordSleepStart(ctx context.Context, body *SleepStartRequest) (*internal.SleepSession, error) {
	if err := ValidateSleepStartRequest(body); err != nil {
		return nil, err
	}
	sleepAt, err := ParseDateTime(body.Date, body.Time)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: started %s", internal.ErrSessionAlreadyOpen, open.SleepAt.Format(internal.InputLayout))
	}

	session := &internal.SleepSession{
		ID:          uuid.NewString(),
		Date:        sleepAt.Format(internal.DateLayout),
		Status:      internal.SessionOpen,
		SleepAt:     sleepAt,
		Preparation: body.Notes,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Infof("sleep recorded at %s", sleepAt.Format(internal.InputLayout))
	return session, nil
}

// RecordWake completes the open session and asks for guidance. done, when
// not nil, receives the guidance outcome; a failed generation never undoes
// the session write.
func (s *RecordService) RecordWake(ctx context.Context, body *WakeRequest, done advice.Callback) (*internal.SleepSession, error) {
	if err := ValidateWakeRequest(body); err != nil {
		return nil, err
	}
	wakeAt, err := ParseDateTime(body.Date, body.Time)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session, err := s.complete(ctx, body, wakeAt)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.advisor != nil {
		s.advisor.RequestForSessionAsync(ctx, session, done)
	}
	return session, nil
}

func (s *RecordService) complete(ctx context.Context, body *WakeRequest, wakeAt time.Time) (*internal.SleepSession, error) {
	open, err := s.findOpen(ctx, body.SessionID)
	if err != nil {
		return nil, err
	}

	wakeAt, duration, err := DurationBetween(open.SleepAt, wakeAt)
	if err != nil {
		return nil, err
	}
	date := wakeAt.Format(internal.DateLayout)

	sameDay, err := s.repo.ListSessions(ctx, date, date)
	if err != nil {
		return nil, err
	}
	for _, other := range sameDay {
		if other.ID != open.ID && !other.IsOpen() {
			return nil, fmt.Errorf("%w: %s", internal.ErrDuplicateSessionDate, date)
		}
	}

	open.Date = date
	open.Status = internal.SessionComplete
	open.WakeAt = &wakeAt
	open.DurationMinutes = &duration.Minutes
	open.Satisfaction = body.Satisfaction
	open.Quality = body.Quality
	open.Dissatisfaction = body.Dissatisfaction
	open.Anxiety = body.Anxiety
	open.Reflection = body.Reflection
	if err := s.repo.UpdateSession(ctx, open); err != nil {
		return nil, err
	}
	s.logger.Infof("session %s completed for %s, slept %s", open.ID, date, duration)
	return open, nil
}

func (s *RecordService) findOpen(ctx context.Context, id string) (*internal.SleepSession, error) {
	if id == "" {
		open, err := s.OpenSession(ctx)
		if err != nil {
			return nil, err
		}
		if open == nil {
			return nil, internal.ErrPrecededByMissingSleep
		}
		return open, nil
	}
	session, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, internal.ErrPrecededByMissingSleep
	}
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, fmt.Errorf("%w: session %s is already complete", internal.ErrPrecededByMissingSleep, id)
	}
	return session, nil
}

// ListByDateRange returns sessions with start <= date <= end, newest first.
func (s *RecordService) ListByDateRange(ctx context.Context, start, end string) ([]internal.SleepSession, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	return s.repo.ListSessions(ctx, start, end)
}

func (s *RecordService) Get(ctx context.Context, id string) (*internal.SleepSession, error) {
	return s.repo.GetSession(ctx, id)
}

// Delete is idempotent. Guidance for the session's date is left in place.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return internal.Invalid(errors.New("session id is required"))
	}
	return s.repo.DeleteSession(ctx, id)
}

func ValidateDate(date string) error {
	if _, err := time.Parse(internal.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", internal.ErrInvalidTimestamp, date)
	}
	return nil
}

func ValidateRange(start, end string) error {
	if err := ValidateDate(start); err != nil {
		return err
	}
	if err := ValidateDate(end); err != nil {
		return err
	}
	if start > end {
		return internal.Invalid(fmt.Errorf("range start %s is after end %s", start, end))
	}
	return nil
}
