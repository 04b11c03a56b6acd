package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/storage"
)

type ProfileRequest struct {
	Nickname         string `json:"nickname" validate:"max=100"`
	MedicationStatus string `json:"medication_status" validate:"omitempty,oneof=not_using using"`
	ReductionIntent  string `json:"reduction_intent" validate:"omitempty,oneof=not_applicable wants_to_reduce maintain"`
	AdviceIntensity  string `json:"advice_intensity" validate:"omitempty,oneof=light medium hard"`
}

func ValidateProfileRequest(body *ProfileRequest) error {
	return internal.Invalid(validate.Struct(body))
}

// ProfileService owns the singleton profile. Start loads it in the background;
// Current blocks until that load has finished.
type ProfileService struct {
	repo   storage.ProfileRepository
	logger internal.Logger

	startOnce sync.Once
	started   chan struct{}
	ready     chan struct{}
	initErr   error
}

func NewProfileService(repo storage.ProfileRepository, logger internal.Logger) *ProfileService {
	return &ProfileService{
		repo:    repo,
		logger:  logger,
		started: make(chan struct{}),
		ready:   make(chan struct{}),
	}
}

// GetOrCreate returns the profile, persisting the defaults when it is absent.
func (s *ProfileService) GetOrCreate(ctx context.Context) (*internal.UserProfile, error) {
	p, err := s.repo.GetProfile(ctx, internal.ProfileID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Errorf("failed to load profile: %v", err)
		return nil, err
	}
	p = internal.DefaultProfile()
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		s.logger.Errorf("failed to create default profile: %v", err)
		return nil, err
	}
	s.logger.Info("created default profile")
	return p, nil
}

// Save overwrites the whole profile.
func (s *ProfileService) Save(ctx context.Context, body *ProfileRequest) (*internal.UserProfile, error) {
	if err := ValidateProfileRequest(body); err != nil {
		return nil, err
	}
	p := &internal.UserProfile{
		ID:               internal.ProfileID,
		Nickname:         body.Nickname,
		MedicationStatus: internal.MedicationStatus(body.MedicationStatus),
		ReductionIntent:  internal.ReductionIntent(body.ReductionIntent),
		AdviceIntensity:  internal.AdviceIntensity(body.AdviceIntensity),
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// IsComplete is a UI hint only; generation tolerates incomplete profiles.
func IsComplete(p *internal.UserProfile) bool {
	return p != nil &&
		p.Nickname != "" &&
		p.MedicationStatus != "" &&
		p.ReductionIntent != "" &&
		p.AdviceIntensity != ""
}

// Start runs the initial load once on its own goroutine.
func (s *ProfileService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		close(s.started)
		go func() {
			defer close(s.ready)
			if _, err := s.GetOrCreate(ctx); err != nil {
				s.initErr = fmt.Errorf("%w: %v", internal.ErrNotReady, err)
			}
		}()
	})
}

// Ready is closed once the initial load has finished.
func (s *ProfileService) Ready() <-chan struct{} {
	return s.ready
}

// Current waits for initialisation and returns a fresh copy of the profile.
// It returns ErrNotReady when Start was never called or ctx ends first. A
// failed initial load is retried on every call until a read succeeds.
func (s *ProfileService) Current(ctx context.Context) (*internal.UserProfile, error) {
	select {
	case <-s.started:
	default:
		return nil, internal.ErrNotReady
	}
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", internal.ErrNotReady, ctx.Err())
	}
	p, err := s.GetOrCreate(ctx)
	if err != nil && s.initErr != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrNotReady, err)
	}
	return p, err
}
