// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrInvalidPage indicates an empty title or a page that does not exist
// on the upstream encyclopedia. Not retryable.
var ErrInvalidPage = errors.New("invalid page")

// ErrPathNotFound indicates the search exhausted its frontier or depth
// budget without reaching the target. Not retryable.
var ErrPathNotFound = errors.New("path not found")

// ErrUpstreamAPI indicates a failure talking to the upstream MediaWiki API:
// transport error, non-2xx status, timeout, or undecodable body. Retryable.
var ErrUpstreamAPI = errors.New("upstream api error")

// ErrStoreUnavailable indicates a KV store or work queue backend failure.
// Retryable.
var ErrStoreUnavailable = errors.New("store unavailable")
