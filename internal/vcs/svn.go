package vcs

import "context"

const (
	svnRevisionCmd = `svn info | grep 'Revision' | awk '{print $2}'`
	svnBranchCmd   = `svn info | grep '^URL:' | egrep -o '(tags|branches)/[^/]+|trunk' | egrep -o '[^/]+$'`
)

// SVN reads revision and branch from a Subversion working copy.
type SVN struct {
	Executor CommandExecutor
}

func (s *SVN) Kind() Kind { return KindSVN }
func (s *SVN) Label() string { return "Subversion working copy" }

// Info returns the numeric revision and the last segment of the tags/ or
// branches/ path in the repository URL, or trunk.
func (s *SVN) Info(ctx context.Context, path string) (Info, error) {
	revision, err := Exec(ctx, s.Executor, inDir(path, svnRevisionCmd))
	if err != nil {
		return Info{}, err
	}
	branch, err := Exec(ctx, s.Executor, inDir(path, svnBranchCmd))
	if err != nil {
		return Info{}, err
	}
	return Info{Kind: KindSVN, Revision: revision, Branch: branch}, nil
}
