package repository

import "errors"

// ErrStaleRecord is returned by optimistic-version updates when another
// writer committed first; callers reload and retry.
var ErrStaleRecord = errors.New("repository: record version is stale")
