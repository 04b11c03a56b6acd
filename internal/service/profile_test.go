package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/storage"
)

// gatedProfiles blocks the first read until release is closed.
type gatedProfiles struct {
	storage.ProfileRepository
	release chan struct{}
}

func (g *gatedProfiles) GetProfile(ctx context.Context, id int) (*internal.UserProfile, error) {
	<-g.release
	return g.ProfileRepository.GetProfile(ctx, id)
}

// flakyProfiles fails the next failures reads, then defers to the store.
type flakyProfiles struct {
	storage.ProfileRepository
	mu       sync.Mutex
	failures int
}

func (f *flakyProfiles) GetProfile(ctx context.Context, id int) (*internal.UserProfile, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("transient db error")
	}
	f.mu.Unlock()
	return f.ProfileRepository.GetProfile(ctx, id)
}

func TestGetOrCreateDefaults(t *testing.T) {
	store := setupTestStore(t)
	svc := NewProfileService(store, internal.NopLogger())
	ctx := context.Background()

	p, err := svc.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, internal.DefaultProfile(), p)
	assert.False(t, IsComplete(p))

	stored, err := store.GetProfile(ctx, internal.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, internal.MedicationNotUsing, stored.MedicationStatus)
	assert.Equal(t, internal.IntensityLight, stored.AdviceIntensity)
}

func TestSaveOverwritesWholeProfile(t *testing.T) {
	store := setupTestStore(t)
	svc := NewProfileService(store, internal.NopLogger())
	ctx := context.Background()

	_, err := svc.Save(ctx, &ProfileRequest{
		Nickname:         "mika",
		MedicationStatus: "using",
		ReductionIntent:  "wants_to_reduce",
		AdviceIntensity:  "hard",
	})
	require.NoError(t, err)
	p, err := svc.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.True(t, IsComplete(p))

	_, err = svc.Save(ctx, &ProfileRequest{AdviceIntensity: "medium"})
	require.NoError(t, err)
	p, err = svc.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", p.Nickname)
	assert.Equal(t, internal.MedicationStatus(""), p.MedicationStatus)
	assert.Equal(t, internal.IntensityMedium, p.AdviceIntensity)
	assert.False(t, IsComplete(p))
}

func TestSaveRejectsUnknownValues(t *testing.T) {
	store := setupTestStore(t)
	svc := NewProfileService(store, internal.NopLogger())

	_, err := svc.Save(context.Background(), &ProfileRequest{AdviceIntensity: "extreme"})
	assert.ErrorIs(t, err, internal.ErrValidation)
}

func TestCurrentBeforeStart(t *testing.T) {
	svc := NewProfileService(setupTestStore(t), internal.NopLogger())
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, internal.ErrNotReady)
}

func TestCurrentWaitsForInitialisation(t *testing.T) {
	gate := &gatedProfiles{ProfileRepository: setupTestStore(t), release: make(chan struct{})}
	svc := NewProfileService(gate, internal.NopLogger())
	svc.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Current(ctx)
	assert.ErrorIs(t, err, internal.ErrNotReady)

	close(gate.release)
	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("profile initialisation did not finish")
	}
	p, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, internal.IntensityLight, p.AdviceIntensity)
}

func TestCurrentRecoversAfterFailedInitialLoad(t *testing.T) {
	repo := &flakyProfiles{ProfileRepository: setupTestStore(t), failures: 2}
	svc := NewProfileService(repo, internal.NopLogger())
	svc.Start(context.Background())

	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("profile initialisation did not finish")
	}

	// The store is still failing once more.
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, internal.ErrNotReady)

	p, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, internal.IntensityLight, p.AdviceIntensity)

	p, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, internal.ProfileID, p.ID)
}

func TestReferenceContent(t *testing.T) {
	store := setupTestStore(t)
	svc := NewReferenceService(store, internal.NopLogger())
	ctx := context.Background()

	r, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReferencePlaceholder, r.Content)

	_, err = svc.Save(ctx, &ReferenceRequest{Content: "Stimulus control: leave the bed when awake."})
	require.NoError(t, err)
	r, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Stimulus control: leave the bed when awake.", r.Content)
}
