package site

import "errors"

var (
	// ErrUnknownListing is returned for listing names missing from the configuration.
	ErrUnknownListing = errors.New("unknown listing")
	// ErrNewsDisabled signals that no news API is configured.
	ErrNewsDisabled = errors.New("news api not configured")
	// ErrClosed is returned once the service has been closed.
	ErrClosed = errors.New("site service closed")
	// ErrInvalidPath is returned when a request path escapes the site directory.
	ErrInvalidPath = errors.New("invalid path")
)
