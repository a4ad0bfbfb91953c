package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/joelmoss/vcsinfo/internal/errs"
)

// Kind represents a VCS type.
type Kind string

const (
	KindUnknown Kind = ""
	KindGit     Kind = "GIT"
	KindSVN     Kind = "SVN"
)

// Info is the revision and branch of a working copy, normalized across VCS kinds.
type Info struct {
	Kind     Kind
	Revision string
	Branch   string
}

// VCS defines how revision and branch are read from a remote working copy.
type VCS interface {
	Kind() Kind
	Label() string
	Info(ctx context.Context, path string) (Info, error)
}

// Detect lists path on the remote host and looks for .git, then .svn.
// When both are present Git wins.
func Detect(ctx context.Context, e CommandExecutor, path string) (Kind, error) {
	out, err := Exec(ctx, e, inDir(path, "ls -la"))
	if err != nil {
		return KindUnknown, err
	}
	if strings.Contains(out, ".git") {
		return KindGit, nil
	}
	if strings.Contains(out, ".svn") {
		return KindSVN, nil
	}
	return KindUnknown, fmt.Errorf("%w: %s", errs.ErrVCSNotFound, path)
}

// ForKind returns the extractor for kind, or nil if kind is not supported.
func ForKind(kind Kind, e CommandExecutor) VCS {
	switch kind {
	case KindGit:
		return &Git{Executor: e}
	case KindSVN:
		return &SVN{Executor: e}
	}
	return nil
}
