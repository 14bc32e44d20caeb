// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/models"
)

// MockResolver is a test double for services.Resolver keyed by link.
type MockResolver struct {
	mu    sync.Mutex
	Songs map[string][]models.Song
	Err   error
	Calls []string
}

func NewMockResolver(link string, songs ...models.Song) *MockResolver {
	return &MockResolver{Songs: map[string][]models.Song{link: songs}}
}

func (m *MockResolver) Resolve(ctx context.Context, link string) ([]models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, link)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Songs[link], nil
}

// MockFetcher is a test double for services.Fetcher.
//
// It writes "<name>.mp3" into the target directory unless Errs has an entry for the song's name.
// When Gate is set, every fetch blocks until a value is received from it or ctx ends.
type MockFetcher struct {
	mu      sync.Mutex
	Errs    map[string]error
	Gate    chan struct{}
	Started chan models.Song
	Calls   []models.Song
	Panic   bool
}

func (m *MockFetcher) Fetch(ctx context.Context, song models.Song, dir string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, song)
	err := m.Errs[song.Name]
	m.mu.Unlock()

	if m.Started != nil {
		select {
		case m.Started <- song:
		default:
		}
	}

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Panic {
		panic("fetcher exploded")
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, song.Name+".mp3")
	if err := os.WriteFile(path, []byte(song.Query()), 0644); err != nil {
		return "", fmt.Errorf("mock write failed: %w", err)
	}
	return path, nil
}

// Fetched returns a copy of the songs passed to Fetch, in call order.
func (m *MockFetcher) Fetched() []models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Song(nil), m.Calls...)
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *log.Logger {
	return log.New(io.Discard)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
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

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Path should not exist: %s", path)
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
