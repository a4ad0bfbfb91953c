package fleet

import "github.com/joelmoss/vcsinfo/internal/errs"

// Re-export errors for convenience.
var (
	ErrNoAuth      = errs.ErrNoAuth
	ErrConnect     = errs.ErrConnect
	ErrVCSNotFound = errs.ErrVCSNotFound
)
