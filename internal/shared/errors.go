package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrFetchFailed        = fmt.Errorf("fetch failed")

	// Job errors
	ErrJobNotFound = fmt.Errorf("job not found")
	ErrNotReady    = fmt.Errorf("file not ready yet")
	ErrJobFinished = fmt.Errorf("job already finished")
	ErrCancelled   = fmt.Errorf("job cancelled")
	ErrShutdown    = fmt.Errorf("job manager is shutting down")

	// Input validation errors
	ErrInvalidLink     = fmt.Errorf("invalid Spotify link")
	ErrEmptySelection  = fmt.Errorf("no songs selected")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
