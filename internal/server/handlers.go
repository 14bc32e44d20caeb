package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/formatter"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/desertthunder/songzip/internal/tasks"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	msgInvalidLink     = "Please enter a valid Spotify track or playlist URL."
	msgNotReady        = "File not ready yet."
	msgInvalidURL      = "Invalid Spotify URL"
	msgNoTracks        = "No tracks found"
	msgFetchFailed     = "Failed to fetch tracks"
	msgNoSongs         = "No songs selected"
	msgStarted         = "download started"
	msgShuttingDown    = "Server is shutting down"
	defaultArchiveName = "spotify_songs.zip"
)

// JobController is the part of [tasks.Manager] the handlers depend on.
type JobController interface {
	Start(ctx context.Context, in tasks.Input) (models.Job, error)
	Status(id string) (models.Job, error)
	Latest() models.Job
	List() []models.Job
	Report(id string) (models.Report, error)
	Artifact(id string) (string, error)
	Cancel(id string) error
}

// Handlers serves the web page, the polling routes and the job-scoped API.
type Handlers struct {
	jobs        JobController
	resolver    services.Resolver
	archiveName string
	logger      *log.Logger
	tmpl        *template.Template
}

// NewHandlers parses the embedded page template and returns the handler set.
// resolver may be nil, in which case /list_tracks always fails.
func NewHandlers(jobs JobController, resolver services.Resolver, archiveName string, logger *log.Logger) (*Handlers, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if archiveName == "" {
		archiveName = defaultArchiveName
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Handlers{jobs: jobs, resolver: resolver, archiveName: archiveName, logger: logger, tmpl: tmpl}, nil
}

// Register adds every route to r.
func (h *Handlers) Register(r Router) {
	r.Handle(http.MethodGet, "/", http.HandlerFunc(h.Index))
	r.Handle(http.MethodPost, "/", http.HandlerFunc(h.Submit))
	r.Handle(http.MethodGet, "/progress", http.HandlerFunc(h.Progress))
	r.Handle(http.MethodGet, "/download", http.HandlerFunc(h.Download))
	r.Handle(http.MethodPost, "/list_tracks", http.HandlerFunc(h.ListTracks))
	r.Handle(http.MethodPost, "/download_selected", http.HandlerFunc(h.DownloadSelected))

	r.Handle(http.MethodGet, "/jobs", http.HandlerFunc(h.ListJobs))
	r.Handle(http.MethodGet, "/jobs/{id}", http.HandlerFunc(h.GetJob))
	r.Handle(http.MethodDelete, "/jobs/{id}", http.HandlerFunc(h.CancelJob))
	r.Handle(http.MethodGet, "/jobs/{id}/report", http.HandlerFunc(h.JobReport))
	r.Handle(http.MethodGet, "/jobs/{id}/download", http.HandlerFunc(h.JobDownload))
}

// NewRouter wires h and a health check into a [MuxRouter] with recovery, logging and CORS.
func NewRouter(h *Handlers, origins []string, logger *log.Logger) http.Handler {
	r := NewMuxRouter()
	r.Use(Recover(logger), Logging(logger))
	r.Handler(NewHealthHandler())
	h.Register(r)
	return CORS(origins)(r)
}

type pageData struct {
	Error       string
	Downloading bool
	JobID       string
	Link        string
}

// Index handles GET /.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	latest := h.jobs.Latest()
	h.render(w, http.StatusOK, pageData{Downloading: latest.Status.IsActive(), JobID: latest.ID})
}

// Submit handles POST / with the form field spotify_url.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	link := strings.TrimSpace(r.FormValue("spotify_url"))
	if link == "" {
		h.render(w, http.StatusOK, pageData{Error: msgInvalidLink})
		return
	}

	job, err := h.jobs.Start(r.Context(), tasks.Input{Link: link})
	switch {
	case errors.Is(err, shared.ErrInvalidLink):
		h.render(w, http.StatusOK, pageData{Error: msgInvalidLink, Link: link})
		return
	case errors.Is(err, shared.ErrShutdown):
		h.render(w, http.StatusServiceUnavailable, pageData{Error: msgShuttingDown, Link: link})
		return
	case err != nil:
		h.logger.Error("failed to start job", "err", err)
		h.render(w, http.StatusInternalServerError, pageData{Error: err.Error(), Link: link})
		return
	}

	h.render(w, http.StatusOK, pageData{Downloading: true, JobID: job.ID, Link: link})
}

// Progress handles GET /progress with the four-field view of the latest job.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Latest().Progress())
}

// Download handles GET /download for the latest job.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	latest := h.jobs.Latest()
	if latest.ID == "" {
		http.Error(w, msgNotReady, http.StatusBadRequest)
		return
	}
	h.serveArchive(w, r, latest.ID, h.archiveName)
}

type listTracksRequest struct {
	SpotifyURL string `json:"spotify_url"`
}

type listTracksResponse struct {
	Tracks []models.Song `json:"tracks"`
}

// ListTracks handles POST /list_tracks.
func (h *Handlers) ListTracks(w http.ResponseWriter, r *http.Request) {
	var req listTracksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !services.HasMarker(req.SpotifyURL) {
		writeError(w, http.StatusBadRequest, msgInvalidURL)
		return
	}
	if h.resolver == nil {
		h.logger.Error("list tracks without a resolver", "err", shared.ErrMissingCredentials)
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}

	songs, err := h.resolver.Resolve(r.Context(), req.SpotifyURL)
	switch {
	case errors.Is(err, shared.ErrInvalidLink):
		writeError(w, http.StatusBadRequest, msgInvalidURL)
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrTrackNotFound):
		writeError(w, http.StatusNotFound, msgNoTracks)
	case err != nil:
		h.logger.Error("failed to resolve link", "link", req.SpotifyURL, "err", err)
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
	case len(songs) == 0:
		writeError(w, http.StatusNotFound, msgNoTracks)
	default:
		writeJSON(w, http.StatusOK, listTracksResponse{Tracks: songs})
	}
}

type downloadSelectedRequest struct {
	Songs []models.Song `json:"songs"`
}

type startResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// DownloadSelected handles POST /download_selected with an explicit song list.
func (h *Handlers) DownloadSelected(w http.ResponseWriter, r *http.Request) {
	var req downloadSelectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Songs) == 0 {
		writeError(w, http.StatusBadRequest, msgNoSongs)
		return
	}

	job, err := h.jobs.Start(r.Context(), tasks.Input{Songs: req.Songs})
	switch {
	case errors.Is(err, shared.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, msgNoSongs)
	case err != nil:
		writeError(w, statusFor(err), err.Error())
	default:
		writeJSON(w, http.StatusAccepted, startResponse{Status: msgStarted, JobID: job.ID})
	}
}

// ListJobs handles GET /jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.List()})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Status(PathParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob handles DELETE /jobs/{id}.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "id")
	if err := h.jobs.Cancel(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	job, err := h.jobs.Status(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// JobReport handles GET /jobs/{id}/report?format=json|text|markdown|csv. JSON is the default.
func (h *Handlers) JobReport(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "id")

	format := formatter.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := formatter.ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	job, err := h.jobs.Status(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	report, err := h.jobs.Report(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	data, err := formatter.Render(format, formatter.JobReport{Job: job, Report: report})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// JobDownload handles GET /jobs/{id}/download.
func (h *Handlers) JobDownload(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "id")
	if _, err := h.jobs.Status(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.serveArchive(w, r, id, id+".zip")
}

func (h *Handlers) serveArchive(w http.ResponseWriter, r *http.Request, id, name string) {
	path, err := h.jobs.Artifact(id)
	if err != nil {
		http.Error(w, msgNotReady, http.StatusBadRequest)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, msgNotReady, http.StatusBadRequest)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, msgNotReady, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handlers) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error("failed to render page", "err", err)
	}
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	started time.Time
}

var _ Handler = (*HealthHandler)(nil)

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/healthz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNotReady),
		errors.Is(err, shared.ErrInvalidLink),
		errors.Is(err, shared.ErrEmptySelection),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
