// Package errs defines the sentinel error kinds shared across the refresh
// pipeline, so callers can classify failures with errors.Is instead of
// string matching.
package errs

import "errors"

var (
	// ErrFetchFailed covers network, timeout, status>=400, local-file I/O,
	// or unresolved environment variable substitution failures.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrParseFailed means bytes were retrieved but could not be parsed.
	ErrParseFailed = errors.New("parse failed")

	// ErrGuideFetchFailed is recovered locally: callers substitute an empty
	// guide document and continue rather than aborting the refresh.
	ErrGuideFetchFailed = errors.New("guide fetch failed")

	// ErrConcurrentRefresh is returned by the coordinator when a trigger
	// arrives while a run is already in flight.
	ErrConcurrentRefresh = errors.New("refresh already running")

	// ErrNoActiveSnapshot is returned by read endpoints when a profile has
	// never produced a promoted snapshot.
	ErrNoActiveSnapshot = errors.New("no active snapshot")

	// ErrUnknownStreamKey means the relay could not find the stream key in
	// the active snapshot's channel index.
	ErrUnknownStreamKey = errors.New("unknown stream key")

	// ErrUpstreamRelayFailed covers a pre-response upstream failure during
	// stream relay (connection refused, DNS failure, TLS error, etc).
	ErrUpstreamRelayFailed = errors.New("upstream relay failed")

	// ErrNoActiveProvider means no Provider has is_active=true and
	// enabled=true; the refresh is a no-op.
	ErrNoActiveProvider = errors.New("no active provider")

	// ErrNoEnabledProfile means no Profile associated with the active
	// provider is enabled; the refresh is a no-op.
	ErrNoEnabledProfile = errors.New("no enabled profile")
)
