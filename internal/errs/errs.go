package errs

import "errors"

var (
	ErrDecode        = errors.New("bad credentials file content. It must be a JSON array of host records")
	ErrNoAuth        = errors.New("need password or path to key")
	ErrInvalidFormat = errors.New("unknown output format. Use either json or table")
	ErrConnect       = errors.New("failed to connect")
	ErrVCSNotFound   = errors.New("Not found VCS in path")
)
