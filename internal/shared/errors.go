package shared

import "fmt"

// Sentinel errors wrapped with fmt.Errorf("%w: ...") across the CLI. main maps
// [ErrDownloadsFailed] to exit status 1 without the fatal log used for everything else.
var (
	// Configuration and credentials
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// OAuth
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// YouTube Data API and download backends
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Snapshot cache and run outcome
	ErrNoSnapshot      = fmt.Errorf("no cached playlist snapshot")
	ErrCorruptSnapshot = fmt.Errorf("playlist snapshot is unreadable")
	ErrDownloadsFailed = fmt.Errorf("one or more downloads failed")

	// Command-line input
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
