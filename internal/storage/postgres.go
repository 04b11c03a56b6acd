package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourname/sleepcoach/internal"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sleep_sessions (
		id               TEXT PRIMARY KEY,
		date             TEXT NOT NULL,
		status           TEXT NOT NULL,
		sleep_at         TIMESTAMP NOT NULL,
		wake_at          TIMESTAMP,
		duration_minutes INTEGER,
		satisfaction     INTEGER NOT NULL DEFAULT 0,
		quality          INTEGER NOT NULL DEFAULT 0,
		dissatisfaction  INTEGER NOT NULL DEFAULT 0,
		anxiety          INTEGER NOT NULL DEFAULT 0,
		preparation      TEXT NOT NULL DEFAULT '',
		reflection       TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_sleep_sessions_date ON sleep_sessions(date)`,
	`CREATE TABLE IF NOT EXISTS guidance (
		id                  TEXT PRIMARY KEY,
		date                TEXT NOT NULL,
		range_start         TEXT NOT NULL DEFAULT '',
		kind                TEXT NOT NULL,
		text                TEXT NOT NULL,
		mentions_medication BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_guidance_date ON guidance(date)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id                INTEGER PRIMARY KEY,
		nickname          TEXT NOT NULL DEFAULT '',
		medication_status TEXT NOT NULL DEFAULT '',
		reduction_intent  TEXT NOT NULL DEFAULT '',
		advice_intensity  TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE IF NOT EXISTS reference_content (
		id      INTEGER PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '')`,
}

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			logger.Errorf("failed to create schema: %v", err)
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// --- SessionRepository ---

func scanPgSession(row pgx.Row, s *internal.SleepSession) error {
	var (
		status   string
		duration *int32
	)
	err := row.Scan(&s.ID, &s.Date, &status, &s.SleepAt, &s.WakeAt, &duration,
		&s.Satisfaction, &s.Quality, &s.Dissatisfaction, &s.Anxiety, &s.Preparation, &s.Reflection, &s.CreatedAt)
	if err != nil {
		return err
	}
	s.Status = internal.SessionStatus(status)
	if duration != nil {
		d := int(*duration)
		s.DurationMinutes = &d
	}
	return nil
}

func (p *PostgresStorage) CreateSession(ctx context.Context, s *internal.SleepSession) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO sleep_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.Date, string(s.Status), s.SleepAt, s.WakeAt, s.DurationMinutes,
		s.Satisfaction, s.Quality, s.Dissatisfaction, s.Anxiety, s.Preparation, s.Reflection, s.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert sleep session: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) UpdateSession(ctx context.Context, s *internal.SleepSession) error {
	tag, err := p.pool.Exec(ctx, `UPDATE sleep_sessions SET date = $2, status = $3, sleep_at = $4, wake_at = $5, duration_minutes = $6,
		satisfaction = $7, quality = $8, dissatisfaction = $9, anxiety = $10, preparation = $11, reflection = $12 WHERE id = $1`,
		s.ID, s.Date, string(s.Status), s.SleepAt, s.WakeAt, s.DurationMinutes,
		s.Satisfaction, s.Quality, s.Dissatisfaction, s.Anxiety, s.Preparation, s.Reflection)
	if err != nil {
		p.logger.Errorf("failed to update sleep session: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

func (p *PostgresStorage) getSession(ctx context.Context, query string, args ...any) (*internal.SleepSession, error) {
	var s internal.SleepSession
	if err := scanPgSession(p.pool.QueryRow(ctx, query, args...), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to fetch sleep session: %v", err)
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	return p.getSession(ctx, `SELECT `+sessionColumns+` FROM sleep_sessions WHERE id = $1`, id)
}

func (p *PostgresStorage) FindOpenSession(ctx context.Context) (*internal.SleepSession, error) {
	return p.getSession(ctx, `SELECT `+sessionColumns+` FROM sleep_sessions WHERE status = $1 ORDER BY created_at DESC LIMIT 1`,
		string(internal.SessionOpen))
}

func (p *PostgresStorage) ListSessions(ctx context.Context, start, end string) ([]internal.SleepSession, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sleep_sessions WHERE date BETWEEN $1 AND $2 ORDER BY date DESC, sleep_at DESC`, start, end)
	if err != nil {
		p.logger.Errorf("failed to query sleep sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.SleepSession{}
	for rows.Next() {
		var s internal.SleepSession
		if err := scanPgSession(rows, &s); err != nil {
			p.logger.Errorf("failed to scan sleep session: %v", err)
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStorage) DeleteSession(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sleep_sessions WHERE id = $1`, id); err != nil {
		p.logger.Errorf("failed to delete sleep session: %v", err)
		return err
	}
	return nil
}

// --- GuidanceRepository ---

func (p *PostgresStorage) SaveGuidance(ctx context.Context, g *internal.Guidance) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO guidance (`+guidanceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.Date, g.RangeStart, string(g.Kind), g.Text, g.MentionsMedication, g.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert guidance: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) queryGuidance(ctx context.Context, query string, args ...any) ([]internal.Guidance, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Errorf("failed to query guidance: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.Guidance{}
	for rows.Next() {
		var (
			g    internal.Guidance
			kind string
		)
		if err := rows.Scan(&g.ID, &g.Date, &g.RangeStart, &kind, &g.Text, &g.MentionsMedication, &g.CreatedAt); err != nil {
			p.logger.Errorf("failed to scan guidance: %v", err)
			return nil, err
		}
		g.Kind = internal.GuidanceKind(kind)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *PostgresStorage) ListGuidanceByDate(ctx context.Context, date string) ([]internal.Guidance, error) {
	return p.queryGuidance(ctx, `SELECT `+guidanceColumns+` FROM guidance WHERE date = $1 ORDER BY created_at DESC`, date)
}

func (p *PostgresStorage) ListGuidanceInRange(ctx context.Context, start, end string) ([]internal.Guidance, error) {
	return p.queryGuidance(ctx, `SELECT `+guidanceColumns+` FROM guidance WHERE date BETWEEN $1 AND $2 ORDER BY date DESC, created_at DESC`, start, end)
}

func (p *PostgresStorage) ListRecentGuidance(ctx context.Context, limit int) ([]internal.Guidance, error) {
	return p.queryGuidance(ctx, `SELECT `+guidanceColumns+` FROM guidance ORDER BY date DESC, created_at DESC LIMIT $1`, limit)
}

func (p *PostgresStorage) ListGuidanceDates(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT date FROM guidance ORDER BY date`)
	if err != nil {
		p.logger.Errorf("failed to query guidance dates: %v", err)
		return nil, err
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (p *PostgresStorage) LastMedicationMention(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := p.pool.QueryRow(ctx, `SELECT created_at FROM guidance WHERE mentions_medication ORDER BY created_at DESC LIMIT 1`).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		p.logger.Errorf("failed to query last medication mention: %v", err)
		return nil, err
	}
	return &t, nil
}

// --- ProfileRepository ---

func (p *PostgresStorage) GetProfile(ctx context.Context, id int) (*internal.UserProfile, error) {
	var (
		u                    internal.UserProfile
		med, intent, intense string
	)
	row := p.pool.QueryRow(ctx, `SELECT id, nickname, medication_status, reduction_intent, advice_intensity FROM user_profiles WHERE id = $1`, id)
	if err := row.Scan(&u.ID, &u.Nickname, &med, &intent, &intense); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to fetch profile: %v", err)
		return nil, err
	}
	u.MedicationStatus = internal.MedicationStatus(med)
	u.ReductionIntent = internal.ReductionIntent(intent)
	u.AdviceIntensity = internal.AdviceIntensity(intense)
	return &u, nil
}

func (p *PostgresStorage) SaveProfile(ctx context.Context, u *internal.UserProfile) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO user_profiles (id, nickname, medication_status, reduction_intent, advice_intensity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET nickname = EXCLUDED.nickname, medication_status = EXCLUDED.medication_status,
		reduction_intent = EXCLUDED.reduction_intent, advice_intensity = EXCLUDED.advice_intensity`,
		u.ID, u.Nickname, string(u.MedicationStatus), string(u.ReductionIntent), string(u.AdviceIntensity))
	if err != nil {
		p.logger.Errorf("failed to save profile: %v", err)
		return err
	}
	return nil
}

// --- ReferenceRepository ---

func (p *PostgresStorage) GetReference(ctx context.Context, id int) (*internal.ReferenceContent, error) {
	r := internal.ReferenceContent{ID: id}
	if err := p.pool.QueryRow(ctx, `SELECT content FROM reference_content WHERE id = $1`, id).Scan(&r.Content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to fetch reference content: %v", err)
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStorage) SaveReference(ctx context.Context, r *internal.ReferenceContent) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO reference_content (id, content) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content`, r.ID, r.Content)
	if err != nil {
		p.logger.Errorf("failed to save reference content: %v", err)
		return err
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
