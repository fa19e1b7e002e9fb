// package testing contains shared testing utilities and in-memory doubles
// for the pipeline's outbound ports.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/store"
)

// MockStore is an in-memory test double for [store.Store]. Artists are
// keyed by fingerprint, matching the SQLite implementation's identity
// column. Error fields force the next matching call to fail.
type MockStore struct {
	mu       sync.Mutex
	artists  map[string]*models.ArtistProfile
	sessions map[string]*models.Session
	events   map[string][]*models.ProgressEvent

	FindErr   error
	UpsertErr error
	RecordErr error

	UpsertCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		artists:  make(map[string]*models.ArtistProfile),
		sessions: make(map[string]*models.Session),
		events:   make(map[string][]*models.ProgressEvent),
	}
}

// SeedArtist places a profile in the store directly, bypassing merge logic.
func (s *MockStore) SeedArtist(profile *models.ArtistProfile) *models.ArtistProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := profile.Clone()
	if stored.ID == "" {
		stored.ID = shared.GenerateID()
	}
	s.artists[stored.Fingerprint()] = stored
	return stored
}

// ArtistCount returns the number of distinct fingerprints stored.
func (s *MockStore) ArtistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artists)
}

func (s *MockStore) FindArtistBy(ctx context.Context, field store.IdentifierField, value string) (*models.ArtistProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindErr != nil {
		return nil, s.FindErr
	}
	if value == "" {
		return nil, fmt.Errorf("empty lookup value for %s: %w", field, shared.ErrInvalidInput)
	}

	for _, p := range s.artists {
		var match bool
		switch field {
		case store.ByYouTubeChannelID:
			match = p.YouTubeChannelID == value
		case store.BySpotifyID:
			match = p.SpotifyID == value
		case store.ByInstagramHandle:
			match = p.InstagramHandle == value
		case store.ByTikTokHandle:
			match = p.TikTokHandle == value
		case store.ByNormalizedName:
			match = models.NormalizeName(p.Name) == value
		}
		if match {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("artist %s=%s: %w", field, value, shared.ErrNotFound)
}

func (s *MockStore) UpsertArtist(ctx context.Context, profile *models.ArtistProfile) (*models.ArtistProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpsertCalls++
	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %v: %w", err, shared.ErrDataQuality)
	}

	fingerprint := profile.Fingerprint()
	now := time.Now().UTC()

	var stored *models.ArtistProfile
	if existing, ok := s.artists[fingerprint]; ok {
		stored = models.MergeProfiles(existing, profile)
		stored.ID = existing.ID
	} else {
		stored = profile.Clone()
		if stored.ID == "" {
			stored.ID = shared.GenerateID()
		}
		if stored.DiscoveredAt.IsZero() {
			stored.DiscoveredAt = now
		}
	}
	stored.UpdatedAt = now

	s.artists[fingerprint] = stored
	return stored.Clone(), nil
}

func (s *MockStore) ListArtists(ctx context.Context, limit int) ([]*models.ArtistProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	artists := make([]*models.ArtistProfile, 0, len(s.artists))
	for _, p := range s.artists {
		artists = append(artists, p.Clone())
	}
	sort.Slice(artists, func(i, j int) bool {
		if !artists[i].UpdatedAt.Equal(artists[j].UpdatedAt) {
			return artists[i].UpdatedAt.After(artists[j].UpdatedAt)
		}
		return artists[i].Name < artists[j].Name
	})
	if len(artists) > limit {
		artists = artists[:limit]
	}
	return artists, nil
}

func (s *MockStore) RecordSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RecordErr != nil {
		return s.RecordErr
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MockStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, shared.ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (s *MockStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	sessions := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := *session
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *MockStore) AppendSessionEvent(ctx context.Context, sessionID string, event *models.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events[sessionID] = append(s.events[sessionID], &copied)
	return nil
}

func (s *MockStore) SessionEvents(ctx context.Context, sessionID string, limit int) ([]*models.ProgressEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[sessionID]
	if limit > 0 && len(journal) > limit {
		journal = journal[:limit]
	}
	out := make([]*models.ProgressEvent, len(journal))
	for i, event := range journal {
		copied := *event
		out[i] = &copied
	}
	return out, nil
}

// MockFetcher is a test double for [fetch.Fetcher]. Pages maps URLs to the
// HTML served for both plain and rendered fetches; unknown URLs return
// NotFound. A non-zero Delay makes every call block until the delay
// elapses or the context ends, for cancellation tests.
type MockFetcher struct {
	mu sync.Mutex

	Pages    map[string]string
	Errs     map[string]error
	Sessions map[string]*MockSession
	Delay    time.Duration

	PlainCalls    int
	RenderedCalls int
	SessionCalls  int
	Cancelled     int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Pages:    make(map[string]string),
		Errs:     make(map[string]error),
		Sessions: make(map[string]*MockSession),
	}
}

func (f *MockFetcher) wait(ctx context.Context, pageURL string) error {
	if f.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(f.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		f.mu.Lock()
		f.Cancelled++
		f.mu.Unlock()
		return fmt.Errorf("fetch %s: %w", pageURL, shared.ErrCancelled)
	case <-timer.C:
		return nil
	}
}

func (f *MockFetcher) lookup(pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errs[pageURL]; ok {
		return "", err
	}
	body, ok := f.Pages[pageURL]
	if !ok {
		return "", fmt.Errorf("fetch %s: %w", pageURL, shared.ErrNotFound)
	}
	return body, nil
}

func (f *MockFetcher) FetchPlain(ctx context.Context, pageURL string) (*fetch.Result, error) {
	f.mu.Lock()
	f.PlainCalls++
	f.mu.Unlock()

	if err := f.wait(ctx, pageURL); err != nil {
		return nil, err
	}
	body, err := f.lookup(pageURL)
	if err != nil {
		return nil, err
	}
	return &fetch.Result{Status: http.StatusOK, Body: body, FinalURL: pageURL}, nil
}

func (f *MockFetcher) FetchRendered(ctx context.Context, pageURL string, opts fetch.RenderOptions) (*fetch.Result, error) {
	f.mu.Lock()
	f.RenderedCalls++
	f.mu.Unlock()

	if err := f.wait(ctx, pageURL); err != nil {
		return nil, err
	}
	body, err := f.lookup(pageURL)
	if err != nil {
		return nil, err
	}
	return &fetch.Result{Status: http.StatusOK, Body: body, FinalURL: pageURL}, nil
}

func (f *MockFetcher) OpenSession(ctx context.Context, pageURL string, opts fetch.RenderOptions) (fetch.Session, error) {
	f.mu.Lock()
	f.SessionCalls++
	f.mu.Unlock()

	if err := f.wait(ctx, pageURL); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errs[pageURL]; ok {
		return nil, err
	}
	if session, ok := f.Sessions[pageURL]; ok {
		return session, nil
	}
	if body, ok := f.Pages[pageURL]; ok {
		return &MockSession{Steps: []string{body}}, nil
	}
	return nil, fmt.Errorf("fetch %s: %w", pageURL, shared.ErrNotFound)
}

// MockSession scripts a live rendered page. Steps[0] is the content after
// navigation; each successful scroll advances to the next step. Scrolling
// past the last step succeeds without changing the content. ScrollErrs[i]
// is returned by the i-th scroll; nil entries (or indexes past the slice)
// succeed.
type MockSession struct {
	mu sync.Mutex

	Steps      []string
	ScrollErrs []error

	step    int
	scrolls int
	Closed  bool
}

func (s *MockSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("session content: %w", shared.ErrCancelled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Steps) == 0 {
		return "", nil
	}
	return s.Steps[s.step], nil
}

func (s *MockSession) ScrollBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session scroll: %w", shared.ErrCancelled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.scrolls
	s.scrolls++
	if idx < len(s.ScrollErrs) && s.ScrollErrs[idx] != nil {
		return s.ScrollErrs[idx]
	}
	if s.step < len(s.Steps)-1 {
		s.step++
	}
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Scrolls returns how many scroll attempts the session received.
func (s *MockSession) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// MockAnalyzer is a test double for [analyze.Analyzer] returning a fixed
// analysis.
type MockAnalyzer struct {
	Analysis *models.LyricAnalysis
	Err      error
	Calls    int
}

func (a *MockAnalyzer) AnalyzeLyrics(ctx context.Context, text, languageHint string) (*models.LyricAnalysis, error) {
	a.Calls++
	if a.Err != nil {
		return nil, a.Err
	}
	if a.Analysis == nil {
		return &models.LyricAnalysis{Language: "en"}, nil
	}
	copied := *a.Analysis
	return &copied, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
