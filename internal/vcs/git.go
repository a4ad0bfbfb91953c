package vcs

import "context"

// Git reads revision and branch from a Git working copy.
type Git struct {
	Executor CommandExecutor
}

func (g *Git) Kind() Kind { return KindGit }
func (g *Git) Label() string { return "Git repository" }

// Info returns the full HEAD commit hash and the abbreviated ref name, which
// is the literal HEAD when detached.
func (g *Git) Info(ctx context.Context, path string) (Info, error) {
	revision, err := Exec(ctx, g.Executor, inDir(path, "git rev-parse HEAD"))
	if err != nil {
		return Info{}, err
	}
	branch, err := Exec(ctx, g.Executor, inDir(path, "git rev-parse --abbrev-ref HEAD"))
	if err != nil {
		return Info{}, err
	}
	return Info{Kind: KindGit, Revision: revision, Branch: branch}, nil
}
