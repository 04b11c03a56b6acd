package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yourname/sleepcoach/internal"
	_ "modernc.org/sqlite"
)

// createdLayout keeps created_at lexically ordered in TEXT columns.
const createdLayout = "2006-01-02 15:04:05.000000000"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sleep_sessions (
		id               TEXT PRIMARY KEY,
		date             TEXT NOT NULL,
		status           TEXT NOT NULL,
		sleep_at         TEXT NOT NULL,
		wake_at          TEXT,
		duration_minutes INTEGER,
		satisfaction     INTEGER NOT NULL DEFAULT 0,
		quality          INTEGER NOT NULL DEFAULT 0,
		dissatisfaction  INTEGER NOT NULL DEFAULT 0,
		anxiety          INTEGER NOT NULL DEFAULT 0,
		preparation      TEXT NOT NULL DEFAULT '',
		reflection       TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_sleep_sessions_date ON sleep_sessions(date)`,
	`CREATE TABLE IF NOT EXISTS guidance (
		id                  TEXT PRIMARY KEY,
		date                TEXT NOT NULL,
		range_start         TEXT NOT NULL DEFAULT '',
		kind                TEXT NOT NULL,
		text                TEXT NOT NULL,
		mentions_medication INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL)`,
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

type SQLiteStorage struct {
	conn   *sql.DB
	logger internal.Logger
}

// NewSQLiteStorage opens path and creates any missing tables.
func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		logger.Errorf("storage: open sqlite: %v", err)
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		logger.Errorf("storage: ping sqlite: %v", err)
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			logger.Errorf("storage: create schema: %v", err)
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteStorage{conn: conn, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.conn.Close()
}

// --- SessionRepository ---

const sessionColumns = `id, date, status, sleep_at, wake_at, duration_minutes, satisfaction, quality, dissatisfaction, anxiety, preparation, reflection, created_at`

func scanSession(scanner interface{ Scan(...any) error }, s *internal.SleepSession) error {
	var (
		status, sleepAt, createdAt string
		wakeAt                     sql.NullString
		duration                   sql.NullInt64
	)
	err := scanner.Scan(&s.ID, &s.Date, &status, &sleepAt, &wakeAt, &duration,
		&s.Satisfaction, &s.Quality, &s.Dissatisfaction, &s.Anxiety, &s.Preparation, &s.Reflection, &createdAt)
	if err != nil {
		return err
	}
	s.Status = internal.SessionStatus(status)
	if s.SleepAt, err = time.Parse(internal.TimestampLayout, sleepAt); err != nil {
		return fmt.Errorf("parse sleep_at: %w", err)
	}
	if wakeAt.Valid {
		w, err := time.Parse(internal.TimestampLayout, wakeAt.String)
		if err != nil {
			return fmt.Errorf("parse wake_at: %w", err)
		}
		s.WakeAt = &w
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	if s.CreatedAt, err = time.Parse(createdLayout, createdAt); err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	return nil
}

func nullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(internal.TimestampLayout)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *SQLiteStorage) CreateSession(ctx context.Context, sess *internal.SleepSession) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sleep_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Date, string(sess.Status), sess.SleepAt.Format(internal.TimestampLayout),
		nullableTimestamp(sess.WakeAt), nullableInt(sess.DurationMinutes),
		sess.Satisfaction, sess.Quality, sess.Dissatisfaction, sess.Anxiety,
		sess.Preparation, sess.Reflection, sess.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		s.logger.Errorf("storage: insert session %s: %v", sess.ID, err)
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpdateSession(ctx context.Context, sess *internal.SleepSession) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sleep_sessions SET date = ?, status = ?, sleep_at = ?, wake_at = ?, duration_minutes = ?,
		 satisfaction = ?, quality = ?, dissatisfaction = ?, anxiety = ?, preparation = ?, reflection = ?
		 WHERE id = ?`,
		sess.Date, string(sess.Status), sess.SleepAt.Format(internal.TimestampLayout),
		nullableTimestamp(sess.WakeAt), nullableInt(sess.DurationMinutes),
		sess.Satisfaction, sess.Quality, sess.Dissatisfaction, sess.Anxiety,
		sess.Preparation, sess.Reflection, sess.ID,
	)
	if err != nil {
		s.logger.Errorf("storage: update session %s: %v", sess.ID, err)
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sleep_sessions WHERE id = ?`, id)
	var sess internal.SleepSession
	if err := scanSession(row, &sess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		s.logger.Errorf("storage: get session %s: %v", id, err)
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteStorage) FindOpenSession(ctx context.Context) (*internal.SleepSession, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sleep_sessions WHERE status = ? ORDER BY created_at DESC LIMIT 1`,
		string(internal.SessionOpen))
	var sess internal.SleepSession
	if err := scanSession(row, &sess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("open session: %w", ErrNotFound)
		}
		s.logger.Errorf("storage: find open session: %v", err)
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStorage) ListSessions(ctx context.Context, start, end string) ([]internal.SleepSession, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sleep_sessions WHERE date BETWEEN ? AND ? ORDER BY date DESC, sleep_at DESC`,
		start, end)
	if err != nil {
		s.logger.Errorf("storage: query sessions: %v", err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []internal.SleepSession{}
	for rows.Next() {
		var sess internal.SleepSession
		if err := scanSession(rows, &sess); err != nil {
			s.logger.Errorf("storage: scan session: %v", err)
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sleep_sessions WHERE id = ?`, id); err != nil {
		s.logger.Errorf("storage: delete session %s: %v", id, err)
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// --- GuidanceRepository ---

const guidanceColumns = `id, date, range_start, kind, text, mentions_medication, created_at`

func scanGuidance(scanner interface{ Scan(...any) error }, g *internal.Guidance) error {
	var kind, createdAt string
	if err := scanner.Scan(&g.ID, &g.Date, &g.RangeStart, &kind, &g.Text, &g.MentionsMedication, &createdAt); err != nil {
		return err
	}
	g.Kind = internal.GuidanceKind(kind)
	t, err := time.Parse(createdLayout, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	g.CreatedAt = t
	return nil
}

func (s *SQLiteStorage) SaveGuidance(ctx context.Context, g *internal.Guidance) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO guidance (`+guidanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Date, g.RangeStart, string(g.Kind), g.Text, g.MentionsMedication, g.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		s.logger.Errorf("storage: insert guidance for %s: %v", g.Date, err)
		return fmt.Errorf("insert guidance: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) queryGuidance(ctx context.Context, query string, args ...any) ([]internal.Guidance, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Errorf("storage: query guidance: %v", err)
		return nil, fmt.Errorf("query guidance: %w", err)
	}
	defer rows.Close()

	out := []internal.Guidance{}
	for rows.Next() {
		var g internal.Guidance
		if err := scanGuidance(rows, &g); err != nil {
			s.logger.Errorf("storage: scan guidance: %v", err)
			return nil, fmt.Errorf("scan guidance: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ListGuidanceByDate(ctx context.Context, date string) ([]internal.Guidance, error) {
	return s.queryGuidance(ctx,
		`SELECT `+guidanceColumns+` FROM guidance WHERE date = ? ORDER BY created_at DESC`, date)
}

func (s *SQLiteStorage) ListGuidanceInRange(ctx context.Context, start, end string) ([]internal.Guidance, error) {
	return s.queryGuidance(ctx,
		`SELECT `+guidanceColumns+` FROM guidance WHERE date BETWEEN ? AND ? ORDER BY date DESC, created_at DESC`, start, end)
}

func (s *SQLiteStorage) ListRecentGuidance(ctx context.Context, limit int) ([]internal.Guidance, error) {
	return s.queryGuidance(ctx,
		`SELECT `+guidanceColumns+` FROM guidance ORDER BY date DESC, created_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStorage) ListGuidanceDates(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT date FROM guidance ORDER BY date`)
	if err != nil {
		s.logger.Errorf("storage: query guidance dates: %v", err)
		return nil, fmt.Errorf("list guidance dates: %w", err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan guidance date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *SQLiteStorage) LastMedicationMention(ctx context.Context) (*time.Time, error) {
	var createdAt string
	err := s.conn.QueryRowContext(ctx,
		`SELECT created_at FROM guidance WHERE mentions_medication = 1 ORDER BY created_at DESC LIMIT 1`).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Errorf("storage: last medication mention: %v", err)
		return nil, fmt.Errorf("last medication mention: %w", err)
	}
	t, err := time.Parse(createdLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &t, nil
}

// --- ProfileRepository ---

func (s *SQLiteStorage) GetProfile(ctx context.Context, id int) (*internal.UserProfile, error) {
	var (
		p                    internal.UserProfile
		med, intent, intense string
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, nickname, medication_status, reduction_intent, advice_intensity FROM user_profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Nickname, &med, &intent, &intense)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	if err != nil {
		s.logger.Errorf("storage: get profile %d: %v", id, err)
		return nil, fmt.Errorf("get profile %d: %w", id, err)
	}
	p.MedicationStatus = internal.MedicationStatus(med)
	p.ReductionIntent = internal.ReductionIntent(intent)
	p.AdviceIntensity = internal.AdviceIntensity(intense)
	return &p, nil
}

func (s *SQLiteStorage) SaveProfile(ctx context.Context, p *internal.UserProfile) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_profiles (id, nickname, medication_status, reduction_intent, advice_intensity)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Nickname, string(p.MedicationStatus), string(p.ReductionIntent), string(p.AdviceIntensity))
	if err != nil {
		s.logger.Errorf("storage: save profile %d: %v", p.ID, err)
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// --- ReferenceRepository ---

func (s *SQLiteStorage) GetReference(ctx context.Context, id int) (*internal.ReferenceContent, error) {
	r := internal.ReferenceContent{ID: id}
	err := s.conn.QueryRowContext(ctx, `SELECT content FROM reference_content WHERE id = ?`, id).Scan(&r.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reference content %d: %w", id, ErrNotFound)
	}
	if err != nil {
		s.logger.Errorf("storage: get reference content: %v", err)
		return nil, fmt.Errorf("get reference content: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStorage) SaveReference(ctx context.Context, r *internal.ReferenceContent) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO reference_content (id, content) VALUES (?, ?)`, r.ID, r.Content)
	if err != nil {
		s.logger.Errorf("storage: save reference content: %v", err)
		return fmt.Errorf("save reference content: %w", err)
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*SQLiteStorage)(nil)
