// Spotify Web API implementation of [Resolver]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 100
	albumPageSize    = 50
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track. Album listings return the same shape without album data.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	IsLocal bool            `json:"is_local"`
	URI     string          `json:"uri"`
}

// Song converts the track into a [models.Song] using its primary artist.
func (t SpotifyTrack) Song() models.Song {
	song := models.Song{Name: t.Name}
	if len(t.Artists) > 0 {
		song.Artist = t.Artists[0].Name
	}
	return song
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items that were removed or are unavailable in the market.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPage is a paginated response; Next is the absolute URL of the following page.
type SpotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyService resolves Spotify links with the client-credentials grant.
//
// No user login is involved: only public catalogue and playlist data is reachable.
type SpotifyService struct {
	config     *clientcredentials.Config
	baseURL    string
	base       *http.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// SpotifyOption customises a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the service at a different API root (used in tests).
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSpotifyTokenURL overrides the token endpoint.
func WithSpotifyTokenURL(tokenURL string) SpotifyOption {
	return func(s *SpotifyService) { s.config.TokenURL = tokenURL }
}

// WithSpotifyHTTPClient sets the underlying client used for both token and API requests.
func WithSpotifyHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.base = client }
}

// WithSpotifyRateLimit caps API requests per second.
func WithSpotifyRateLimit(perSecond float64, burst int) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithSpotifyLogger sets the logger.
func WithSpotifyLogger(logger *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = logger }
}

// NewSpotifyService creates a Spotify resolver from client credentials.
func NewSpotifyService(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	s := &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
		base:    http.DefaultClient,
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		logger:  shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, s.base)
	s.httpClient = s.config.Client(tokenCtx)
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Resolve parses link and returns its songs: one for a track, every available item for a playlist or album.
func (s *SpotifyService) Resolve(ctx context.Context, link string) ([]models.Song, error) {
	parsed, err := ParseLink(link)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("resolving link", "kind", parsed.Kind, "id", parsed.ID)

	switch parsed.Kind {
	case LinkTrack:
		track, err := s.Track(ctx, parsed.ID)
		if err != nil {
			return nil, err
		}
		return []models.Song{track.Song()}, nil
	case LinkPlaylist:
		return s.PlaylistSongs(ctx, parsed.ID)
	case LinkAlbum:
		return s.AlbumSongs(ctx, parsed.ID)
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", shared.ErrInvalidLink, parsed.Kind)
	}
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	endpoint := fmt.Sprintf("/tracks/%s", url.PathEscape(trackID))
	if err := s.doRequest(ctx, endpoint, &track); err != nil {
		return nil, notFoundAs(err, shared.ErrTrackNotFound)
	}
	return &track, nil
}

// PlaylistSongs retrieves every track of a playlist, following pagination.
//
// Removed and local-only items are skipped.
func (s *SpotifyService) PlaylistSongs(ctx context.Context, playlistID string) ([]models.Song, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(playlistID), playlistPageSize)

	var songs []models.Song
	for endpoint != "" {
		var page SpotifyPage[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, notFoundAs(err, shared.ErrPlaylistNotFound)
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.Name == "" {
				continue
			}
			songs = append(songs, item.Track.Song())
		}
		endpoint = nextPage(page.Next)
	}

	return songs, nil
}

// AlbumSongs retrieves every track of an album, following pagination.
func (s *SpotifyService) AlbumSongs(ctx context.Context, albumID string) ([]models.Song, error) {
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d", url.PathEscape(albumID), albumPageSize)

	var songs []models.Song
	for endpoint != "" {
		var page SpotifyPage[SpotifyTrack]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, notFoundAs(err, shared.ErrPlaylistNotFound)
		}

		for _, track := range page.Items {
			songs = append(songs, track.Song())
		}
		endpoint = nextPage(page.Next)
	}

	return songs, nil
}

// errNotFound marks a 404 from the API until the caller picks the specific sentinel.
var errNotFound = errors.New("spotify resource not found")

// doRequest performs an authenticated GET to the Spotify API. Endpoints may be relative to the base URL or absolute.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, retrieveErr)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w: status %d", shared.ErrAPIRequest, shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func notFoundAs(err, sentinel error) error {
	if errors.Is(err, errNotFound) {
		return sentinel
	}
	return err
}

func nextPage(next *string) string {
	if next == nil {
		return ""
	}
	return *next
}
