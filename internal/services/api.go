// API client for a running songzip server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
)

const defaultAPIBaseURL = "http://localhost:5000"

// APIService talks to the HTTP API of a songzip server.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API client. An empty baseURL targets a local server on the default port.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Error returns the server's error message for non-2xx responses, or nil.
func (r *APIResponse) Error() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	if r.IsJSON && json.Unmarshal(r.Body, &body) == nil && body.Error != "" {
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, r.StatusCode, body.Error)
	}
	return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, r.StatusCode, bytes.TrimSpace(r.Body))
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request to the specified path.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path, nil)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Progress returns the status of the server's latest job.
func (a *APIService) Progress(ctx context.Context) (models.Progress, error) {
	var progress models.Progress
	err := a.getJSON(ctx, "/progress", &progress)
	return progress, err
}

// Job returns the full snapshot of one job.
func (a *APIService) Job(ctx context.Context, id string) (models.Job, error) {
	var job models.Job
	err := a.getJSON(ctx, "/jobs/"+id, &job)
	return job, err
}

// ListTracks asks the server to resolve link without starting a job.
func (a *APIService) ListTracks(ctx context.Context, link string) ([]models.Song, error) {
	payload, err := json.Marshal(map[string]string{"spotify_url": link})
	if err != nil {
		return nil, err
	}

	resp, err := a.Post(ctx, "/list_tracks", payload)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var body struct {
		Tracks []models.Song `json:"tracks"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}
	return body.Tracks, nil
}

// DownloadSelected starts a job for an explicit song list and returns its id.
func (a *APIService) DownloadSelected(ctx context.Context, songs []models.Song) (string, error) {
	payload, err := json.Marshal(map[string][]models.Song{"songs": songs})
	if err != nil {
		return "", err
	}

	resp, err := a.Post(ctx, "/download_selected", payload)
	if err != nil {
		return "", err
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	var body struct {
		Status string `json:"status"`
		JobID  string `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return body.JobID, nil
}

// Cancel asks the server to cancel a job.
func (a *APIService) Cancel(ctx context.Context, id string) error {
	resp, err := a.Delete(ctx, "/jobs/"+id)
	if err != nil {
		return err
	}
	return resp.Error()
}

// DownloadArchive streams a finished job's archive into w. An empty id downloads the latest job's archive.
func (a *APIService) DownloadArchive(ctx context.Context, id string, w io.Writer) (int64, error) {
	path := "/download"
	if id != "" {
		path = "/jobs/" + id + "/download"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return 0, (&APIResponse{StatusCode: resp.StatusCode, Body: raw}).Error()
	}

	return io.Copy(w, resp.Body)
}

func (a *APIService) getJSON(ctx context.Context, path string, out any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := resp.Error(); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
