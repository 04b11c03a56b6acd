package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yourname/sleepcoach/internal"
)

// FileStorage keeps every record kind in memory and writes each kind to its
// own JSON file from a debounced background worker.
type FileStorage struct {
	sessions   map[string]*internal.SleepSession
	guidance   []*internal.Guidance
	profiles   map[int]*internal.UserProfile
	references map[int]*internal.ReferenceContent
	mu         sync.RWMutex

	sessionsFile   string
	guidanceFile   string
	profilesFile   string
	referencesFile string

	saveSessions   *flusher
	saveGuidance   *flusher
	saveProfiles   *flusher
	saveReferences *flusher
	shutdownChan   chan struct{}
	workers        sync.WaitGroup
	logger         internal.Logger
}

// flusher coalesces save signals and runs save once the delay has passed quietly.
type flusher struct {
	signal chan struct{}
	delay  time.Duration
	save   func() error
	name   string
}

func (f *flusher) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func NewFileStorage(dir string, logger internal.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Errorf("storage: failed to create data dir %s: %v", dir, err)
		return nil, err
	}
	s := &FileStorage{
		sessions:       make(map[string]*internal.SleepSession),
		profiles:       make(map[int]*internal.UserProfile),
		references:     make(map[int]*internal.ReferenceContent),
		sessionsFile:   filepath.Join(dir, "sleep_sessions.json"),
		guidanceFile:   filepath.Join(dir, "guidance.json"),
		profilesFile:   filepath.Join(dir, "profiles.json"),
		referencesFile: filepath.Join(dir, "reference_content.json"),
		shutdownChan:   make(chan struct{}),
		logger:         logger,
	}
	s.saveSessions = s.newFlusher("sleep sessions", s.writeSessions)
	s.saveGuidance = s.newFlusher("guidance", s.writeGuidance)
	s.saveProfiles = s.newFlusher("profiles", s.writeProfiles)
	s.saveReferences = s.newFlusher("reference content", s.writeReferences)

	var sessions []*internal.SleepSession
	if err := loadJSON(s.sessionsFile, &sessions); err != nil {
		logger.Errorf("storage: failed to load sleep sessions: %v", err)
		return nil, err
	}
	var profiles []*internal.UserProfile
	if err := loadJSON(s.profilesFile, &profiles); err != nil {
		logger.Errorf("storage: failed to load profiles: %v", err)
		return nil, err
	}
	var refs []*internal.ReferenceContent
	if err := loadJSON(s.referencesFile, &refs); err != nil {
		logger.Errorf("storage: failed to load reference content: %v", err)
		return nil, err
	}
	if err := loadJSON(s.guidanceFile, &s.guidance); err != nil {
		logger.Errorf("storage: failed to load guidance: %v", err)
		return nil, err
	}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	for _, r := range refs {
		s.references[r.ID] = r
	}

	for _, f := range []*flusher{s.saveSessions, s.saveGuidance, s.saveProfiles, s.saveReferences} {
		s.workers.Add(1)
		go s.saveWorker(f)
	}
	return s, nil
}

func (s *FileStorage) newFlusher(name string, save func() error) *flusher {
	return &flusher{signal: make(chan struct{}, 1), delay: 500 * time.Millisecond, save: save, name: name}
}

func loadJSON(path string, dst interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) writeSessions() error {
	s.mu.RLock()
	out := make([]*internal.SleepSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return atomicWriteFileJSON(s.sessionsFile, out)
}

func (s *FileStorage) writeGuidance() error {
	s.mu.RLock()
	out := make([]internal.Guidance, 0, len(s.guidance))
	for _, g := range s.guidance {
		out = append(out, *g)
	}
	s.mu.RUnlock()
	return atomicWriteFileJSON(s.guidanceFile, out)
}

func (s *FileStorage) writeProfiles() error {
	s.mu.RLock()
	out := make([]internal.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	s.mu.RUnlock()
	return atomicWriteFileJSON(s.profilesFile, out)
}

func (s *FileStorage) writeReferences() error {
	s.mu.RLock()
	out := make([]internal.ReferenceContent, 0, len(s.references))
	for _, r := range s.references {
		out = append(out, *r)
	}
	s.mu.RUnlock()
	return atomicWriteFileJSON(s.referencesFile, out)
}

func (s *FileStorage) saveWorker(f *flusher) {
	defer s.workers.Done()
	timer := time.NewTimer(f.delay)
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-f.signal:
			pending = true
			timer.Reset(f.delay)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := f.save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", f.name, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

// Close stops the workers and writes every kind synchronously.
func (s *FileStorage) Close() error {
	close(s.shutdownChan)
	s.workers.Wait()

	for _, f := range []*flusher{s.saveSessions, s.saveGuidance, s.saveProfiles, s.saveReferences} {
		if err := f.save(); err != nil {
			s.logger.Errorf("storage: error saving %s on close: %v", f.name, err)
			return err
		}
	}
	return nil
}

// --- SessionRepository ---

func (s *FileStorage) CreateSession(ctx context.Context, sess *internal.SleepSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("storage: session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	s.saveSessions.notify()
	return nil
}

func (s *FileStorage) UpdateSession(ctx context.Context, sess *internal.SleepSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("storage: session %s: %w", sess.ID, ErrNotFound)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	s.saveSessions.notify()
	return nil
}

func (s *FileStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("storage: session %s: %w", id, ErrNotFound)
	}
	return cloneSession(sess), nil
}

func (s *FileStorage) FindOpenSession(ctx context.Context) (*internal.SleepSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *internal.SleepSession
	for _, sess := range s.sessions {
		if sess.IsOpen() && (latest == nil || sess.CreatedAt.After(latest.CreatedAt)) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("storage: open session: %w", ErrNotFound)
	}
	return cloneSession(latest), nil
}

// cloneSession copies the pointer fields too, so stored rows never alias caller memory.
func cloneSession(sess *internal.SleepSession) *internal.SleepSession {
	cp := *sess
	if sess.WakeAt != nil {
		wake := *sess.WakeAt
		cp.WakeAt = &wake
	}
	if sess.DurationMinutes != nil {
		minutes := *sess.DurationMinutes
		cp.DurationMinutes = &minutes
	}
	return &cp
}

func (s *FileStorage) ListSessions(ctx context.Context, start, end string) ([]internal.SleepSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []internal.SleepSession{}
	for _, sess := range s.sessions {
		if sess.Date >= start && sess.Date <= end {
			out = append(out, *cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].SleepAt.After(out[j].SleepAt)
	})
	return out, nil
}

func (s *FileStorage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	s.saveSessions.notify()
	return nil
}

// --- GuidanceRepository ---

func (s *FileStorage) SaveGuidance(ctx context.Context, g *internal.Guidance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.guidance = append(s.guidance, &cp)
	s.saveGuidance.notify()
	return nil
}

// selectGuidance returns copies matching keep, newest date first then newest row first.
func (s *FileStorage) selectGuidance(keep func(*internal.Guidance) bool) []internal.Guidance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []internal.Guidance{}
	for _, g := range s.guidance {
		if keep(g) {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *FileStorage) ListGuidanceByDate(ctx context.Context, date string) ([]internal.Guidance, error) {
	return s.selectGuidance(func(g *internal.Guidance) bool { return g.Date == date }), nil
}

func (s *FileStorage) ListGuidanceInRange(ctx context.Context, start, end string) ([]internal.Guidance, error) {
	return s.selectGuidance(func(g *internal.Guidance) bool { return g.Date >= start && g.Date <= end }), nil
}

func (s *FileStorage) ListRecentGuidance(ctx context.Context, limit int) ([]internal.Guidance, error) {
	out := s.selectGuidance(func(*internal.Guidance) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStorage) ListGuidanceDates(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	dates := []string{}
	for _, g := range s.guidance {
		if _, ok := seen[g.Date]; ok {
			continue
		}
		seen[g.Date] = struct{}{}
		dates = append(dates, g.Date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *FileStorage) LastMedicationMention(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *time.Time
	for _, g := range s.guidance {
		if g.MentionsMedication && (last == nil || g.CreatedAt.After(*last)) {
			t := g.CreatedAt
			last = &t
		}
	}
	return last, nil
}

// --- ProfileRepository ---

func (s *FileStorage) GetProfile(ctx context.Context, id int) (*internal.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("storage: profile %d: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *FileStorage) SaveProfile(ctx context.Context, p *internal.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.ID] = &cp
	s.saveProfiles.notify()
	return nil
}

// --- ReferenceRepository ---

func (s *FileStorage) GetReference(ctx context.Context, id int) (*internal.ReferenceContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.references[id]
	if !ok {
		return nil, fmt.Errorf("storage: reference content %d: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *FileStorage) SaveReference(ctx context.Context, r *internal.ReferenceContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.references[r.ID] = &cp
	s.saveReferences.notify()
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
