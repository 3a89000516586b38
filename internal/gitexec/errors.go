package gitexec

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by git execution.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, gitexec.ErrTimeout) {
//	    // the subprocess was killed after exceeding its deadline
//	}
var (
	// ErrGitNotInstalled is returned when the git binary cannot be found in PATH.
	ErrGitNotInstalled = errors.New("git binary not found")

	// ErrRepoNotFound is returned when the working directory for a git
	// invocation does not exist on disk.
	ErrRepoNotFound = errors.New("repository path does not exist")

	// ErrNotGitRepository is returned when the target directory exists but
	// is not inside a git work tree.
	ErrNotGitRepository = errors.New("not a git repository")

	// ErrTimeout is returned when a git invocation exceeds its deadline.
	// The subprocess is forcibly terminated, not abandoned.
	ErrTimeout = errors.New("git operation timed out")

	// ErrNoRemote is returned when an operation requires a remote but
	// none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrNoUpstream is returned when the current branch has no upstream
	// tracking reference.
	ErrNoUpstream = errors.New("no upstream configured for branch")

	// ErrNothingToCommit is the logical-success condition reported when a
	// commit is requested but the index holds no staged changes. It is not
	// a failure; callers decide whether the run continues.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrPushRejected is returned when the remote refuses a push,
	// typically a non-fast-forward update.
	ErrPushRejected = errors.New("push rejected by remote")
)

// GitError captures a failed git invocation: the argument vector, the
// directory it ran in, the exit code, and whatever git wrote to stderr.
type GitError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg = fmt.Sprintf("%s: %s", msg, s)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

// IsNothingToCommit reports whether err is the nothing-to-commit condition.
func IsNothingToCommit(err error) bool {
	return errors.Is(err, ErrNothingToCommit)
}
