package storage

import (
	"context"
	"time"

	"github.com/yourname/sleepcoach/internal"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = internal.ErrNotFound

type SessionRepository interface {
	CreateSession(ctx context.Context, s *internal.SleepSession) error
	UpdateSession(ctx context.Context, s *internal.SleepSession) error
	GetSession(ctx context.Context, id string) (*internal.SleepSession, error)
	// FindOpenSession returns the single session still waiting for a wake time.
	FindOpenSession(ctx context.Context) (*internal.SleepSession, error)
	// ListSessions returns sessions with start <= date <= end, newest date first.
	ListSessions(ctx context.Context, start, end string) ([]internal.SleepSession, error)
	// DeleteSession is a no-op for unknown ids.
	DeleteSession(ctx context.Context, id string) error
}

type GuidanceRepository interface {
	SaveGuidance(ctx context.Context, g *internal.Guidance) error
	// ListGuidanceByDate returns every row for date, newest first.
	ListGuidanceByDate(ctx context.Context, date string) ([]internal.Guidance, error)
	// ListGuidanceInRange returns rows with start <= date <= end, newest date first.
	ListGuidanceInRange(ctx context.Context, start, end string) ([]internal.Guidance, error)
	ListGuidanceDates(ctx context.Context) ([]string, error)
	ListRecentGuidance(ctx context.Context, limit int) ([]internal.Guidance, error)
	// LastMedicationMention returns nil when no row ever mentioned medication.
	LastMedicationMention(ctx context.Context) (*time.Time, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, id int) (*internal.UserProfile, error)
	// SaveProfile replaces the whole row.
	SaveProfile(ctx context.Context, p *internal.UserProfile) error
}

type ReferenceRepository interface {
	GetReference(ctx context.Context, id int) (*internal.ReferenceContent, error)
	SaveReference(ctx context.Context, r *internal.ReferenceContent) error
}

// Store is the full gateway over the four record kinds.
type Store interface {
	SessionRepository
	GuidanceRepository
	ProfileRepository
	ReferenceRepository
	Close() error
}
