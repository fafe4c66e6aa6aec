package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// AuthError means no valid access token could be obtained.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ListingKind classifies a [ListingError].
type ListingKind int

const (
	ListingUnknown ListingKind = iota
	ListingQuotaExceeded
	ListingNotFound
	ListingForbidden
)

func (k ListingKind) String() string {
	switch k {
	case ListingQuotaExceeded:
		return "quota_exceeded"
	case ListingNotFound:
		return "not_found"
	case ListingForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// ListingError is a failure to enumerate a playlist.
type ListingError struct {
	Kind     ListingKind
	Playlist string
	Err      error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing %q failed (%s): %v", e.Playlist, e.Kind, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// FetchKind classifies a [FetchError].
type FetchKind int

const (
	FetchUnknown FetchKind = iota
	FetchTransient
	FetchPermanentUnavailable
	FetchNoAcceptableStream
	FetchAuthRequired
)

func (k FetchKind) String() string {
	switch k {
	case FetchTransient:
		return "transient"
	case FetchPermanentUnavailable:
		return "permanent_unavailable"
	case FetchNoAcceptableStream:
		return "no_acceptable_stream"
	case FetchAuthRequired:
		return "auth_required"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt could succeed.
func (k FetchKind) Retryable() bool {
	return k == FetchTransient || k == FetchUnknown
}

// FetchError is a failed download attempt.
type FetchError struct {
	Kind    FetchKind
	VideoID string
	Err     error
}

// NewFetchError wraps err with a kind.
func NewFetchError(kind FetchKind, videoID string, err error) *FetchError {
	return &FetchError{Kind: kind, VideoID: videoID, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.VideoID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchKindOf classifies any error returned by a [MediaFetcher].
//
// A [*FetchError] keeps its kind. Network failures and deadlines are transient. Everything else is unknown.
func FetchKindOf(err error) FetchKind {
	if err == nil {
		return FetchUnknown
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if isTransientError(err) {
		return FetchTransient
	}
	return FetchUnknown
}

func isTransientError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var unavailableMarkers = []string{
	"private video",
	"video unavailable",
	"this video is unavailable",
	"this video has been removed",
	"video has been removed",
	"available in your country",
	"blocked it in your country",
	"account associated with this video has been terminated",
	"copyright claim",
}

// IsUnavailableMessage reports whether a platform message says the video cannot be fetched by anyone retrying.
func IsUnavailableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range unavailableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Age gates, bot checks, members-only videos and premieres need an account or a later run,
// so they are reported as failures rather than unavailability.
var authMarkers = []string{
	"sign in to confirm",
	"login required",
	"log in to",
	"members-only",
	"join this channel",
	"use --cookies",
	"premieres in",
	"premiere will begin",
	"this live event will begin",
}

// IsAuthMessage reports whether a platform message asks for credentials or a later attempt.
func IsAuthMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

var transientMarkers = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure in name resolution",
	"http error 429",
	"too many requests",
	"http error 500",
	"http error 502",
	"http error 503",
	"http error 504",
	"incompleteread",
	"unable to download webpage",
	"network is unreachable",
}

// IsTransientMessage reports whether a message describes a network or rate-limit failure.
func IsTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
