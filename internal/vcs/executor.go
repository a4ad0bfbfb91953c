package vcs

import (
	"context"
	"strings"
	"unicode"
)

// CommandExecutor runs a shell command on a remote host and returns what it
// wrote to stdout and stderr. The error is reserved for transport failures.
type CommandExecutor interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
}

// CommandError is returned when a command writes anything to stderr. Its
// message is the stderr text verbatim.
type CommandError struct {
	Command string
	Stderr  string
}

func (e *CommandError) Error() string {
	return e.Stderr
}

// Exec runs command and treats any stderr output as failure. The returned
// stdout has trailing whitespace removed.
func Exec(ctx context.Context, e CommandExecutor, command string) (string, error) {
	stdout, stderr, err := e.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if stderr != "" {
		return "", &CommandError{Command: command, Stderr: stderr}
	}
	return strings.TrimRightFunc(stdout, unicode.IsSpace), nil
}

// inDir prefixes command with a cd into path. The path is not quoted so the
// remote shell can expand ~.
func inDir(path, command string) string {
	return "cd " + path + "; " + command
}
