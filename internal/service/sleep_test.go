package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/advice"
	"github.com/yourname/sleepcoach/internal/storage"
)

type outcome struct {
	guidance *internal.Guidance
	err      error
}

func setupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sleep.db"), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixture struct {
	store    *storage.SQLiteStorage
	gen      *advice.MockGenerator
	profiles *ProfileService
	advice   *advice.Service
	records  *RecordService
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	store := setupTestStore(t)
	logger := internal.NopLogger()
	gen := advice.NewMockGenerator("Keep the same wake time this week.")
	profiles := NewProfileService(store, logger)
	profiles.Start(context.Background())
	adv := advice.NewService(store, gen, profiles, logger, advice.Options{})
	t.Cleanup(adv.Close)
	return &fixture{
		store:    store,
		gen:      gen,
		profiles: profiles,
		advice:   adv,
		records:  NewRecordService(store, adv, logger),
	}
}

func wakeRequest(date, clock string) *WakeRequest {
	return &WakeRequest{Date: date, Time: clock, Satisfaction: 70, Quality: 65, Dissatisfaction: 20, Anxiety: 30, Reflection: "woke once"}
}

func waitOutcome(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("guidance callback was not invoked")
		return outcome{}
	}
}

func TestSleepLifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	opened, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:30", Notes: "read a book"})
	require.NoError(t, err)
	assert.True(t, opened.IsOpen())
	assert.Equal(t, "2024-01-01", opened.Date)

	done := make(chan outcome, 1)
	session, err := f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:15"), func(g *internal.Guidance, err error) {
		done <- outcome{g, err}
	})
	require.NoError(t, err)
	assert.Equal(t, opened.ID, session.ID)
	assert.Equal(t, internal.SessionComplete, session.Status)
	assert.Equal(t, "2024-01-02", session.Date)
	require.NotNil(t, session.DurationMinutes)
	assert.Equal(t, 405, *session.DurationMinutes)
	assert.Equal(t, "read a book", session.Preparation)

	o := waitOutcome(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, "2024-01-02", o.guidance.Date)

	stored, err := f.records.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOpen())

	found, err := f.advice.Lookup(ctx, "2024-01-02")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, o.guidance.ID, found.ID)

	open, err := f.records.OpenSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestRecordWakeRollsOverMidnight(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:30"})
	require.NoError(t, err)
	session, err := f.records.RecordWake(ctx, wakeRequest("2024-01-01", "00:15"), nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02", session.Date)
	assert.Equal(t, 45, *session.DurationMinutes)
	assert.True(t, session.WakeAt.After(session.SleepAt))
}

func TestRecordWakeDaysBeforeSleepIsRejected(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	opened, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-05", Time: "23:00"})
	require.NoError(t, err)
	_, err = f.records.RecordWake(ctx, wakeRequest("2024-01-01", "06:00"), nil)
	assert.ErrorIs(t, err, internal.ErrInvalidTimestamp)
	assert.ErrorIs(t, err, internal.ErrValidation)

	open, err := f.records.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, opened.ID, open.ID)
	assert.Nil(t, open.WakeAt)
	assert.Nil(t, open.DurationMinutes)

	sessions, err := f.records.ListByDateRange(ctx, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2024-01-05", sessions[0].Date)
	assert.Zero(t, f.gen.CallCount())
}

func TestRecordWakeWithoutOpenSession(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:00"), nil)
	assert.ErrorIs(t, err, internal.ErrPrecededByMissingSleep)

	_, err = f.records.RecordWake(ctx, &WakeRequest{SessionID: "missing", Date: "2024-01-02", Time: "06:00"}, nil)
	assert.ErrorIs(t, err, internal.ErrPrecededByMissingSleep)

	sessions, err := f.records.ListByDateRange(ctx, "2000-01-01", "2100-01-01")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Zero(t, f.gen.CallCount())
}

func TestRecordWakeTwiceOnSameSession(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	opened, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	_, err = f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:00"), nil)
	require.NoError(t, err)

	req := wakeRequest("2024-01-02", "07:00")
	req.SessionID = opened.ID
	_, err = f.records.RecordWake(ctx, req, nil)
	assert.ErrorIs(t, err, internal.ErrPrecededByMissingSleep)
}

func TestRecordSleepStartWhileOpen(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	_, err = f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:45"})
	assert.ErrorIs(t, err, internal.ErrSessionAlreadyOpen)
}

func TestRecordSleepStartValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01"})
	assert.ErrorIs(t, err, internal.ErrValidation)

	_, err = f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "01/01/2024", Time: "23:00"})
	assert.ErrorIs(t, err, internal.ErrInvalidTimestamp)

	open, err := f.records.OpenSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestRecordWakeRejectsScoresOutOfRange(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	req := wakeRequest("2024-01-02", "06:00")
	req.Anxiety = 101
	_, err = f.records.RecordWake(ctx, req, nil)
	assert.ErrorIs(t, err, internal.ErrValidation)

	open, err := f.records.OpenSession(ctx)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestOneCompleteSessionPerDate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	_, err = f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:00"), nil)
	require.NoError(t, err)

	_, err = f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-02", Time: "13:00"})
	require.NoError(t, err)
	_, err = f.records.RecordWake(ctx, wakeRequest("2024-01-02", "14:00"), nil)
	assert.ErrorIs(t, err, internal.ErrDuplicateSessionDate)

	open, err := f.records.OpenSession(ctx)
	require.NoError(t, err)
	assert.NotNil(t, open, "the rejected wake leaves the session open")
}

func TestGenerationFailureKeepsSession(t *testing.T) {
	f := setupFixture(t)
	f.gen.Err = errors.New("provider down")
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	done := make(chan outcome, 1)
	session, err := f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:00"), func(g *internal.Guidance, err error) {
		done <- outcome{g, err}
	})
	require.NoError(t, err)

	o := waitOutcome(t, done)
	assert.ErrorIs(t, o.err, internal.ErrGenerationFailed)
	assert.Nil(t, o.guidance)

	stored, err := f.records.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.SessionComplete, stored.Status)

	g, err := f.advice.Lookup(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestListByDateRangeOrdering(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for _, d := range []struct{ sleepDate, wakeDate string }{
		{"2024-01-01", "2024-01-02"},
		{"2024-01-03", "2024-01-04"},
		{"2024-01-02", "2024-01-03"},
	} {
		_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: d.sleepDate, Time: "23:00"})
		require.NoError(t, err)
		_, err = f.records.RecordWake(ctx, wakeRequest(d.wakeDate, "06:30"), nil)
		require.NoError(t, err)
	}

	sessions, err := f.records.ListByDateRange(ctx, "2024-01-02", "2024-01-03")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2024-01-03", sessions[0].Date)
	assert.Equal(t, "2024-01-02", sessions[1].Date)

	none, err := f.records.ListByDateRange(ctx, "2023-01-01", "2023-01-31")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.records.ListByDateRange(ctx, "2024-01-05", "2024-01-01")
	assert.ErrorIs(t, err, internal.ErrValidation)
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.records.RecordSleepStart(ctx, &SleepStartRequest{Date: "2024-01-01", Time: "23:00"})
	require.NoError(t, err)
	done := make(chan outcome, 1)
	session, err := f.records.RecordWake(ctx, wakeRequest("2024-01-02", "06:00"), func(g *internal.Guidance, err error) {
		done <- outcome{g, err}
	})
	require.NoError(t, err)
	require.NoError(t, waitOutcome(t, done).err)

	require.NoError(t, f.records.Delete(ctx, session.ID))
	require.NoError(t, f.records.Delete(ctx, session.ID))

	sessions, err := f.records.ListByDateRange(ctx, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// guidance is keyed by date and survives the session
	g, err := f.advice.Lookup(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.NotNil(t, g)

	assert.ErrorIs(t, f.records.Delete(ctx, ""), internal.ErrValidation)
}
