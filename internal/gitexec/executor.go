// Package gitexec runs git subcommands against a working directory with
// tiered timeouts, a sanitized environment, and a TTL cache for read-only
// queries.
//
// All invocations pass arguments as a discrete vector (never through a
// shell), run with the repository as the working directory, and disable
// interactive credential prompting so a hung authentication prompt can
// never block the caller.
package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Timeout tiers. Network-bound operations (push, pull, fetch) get a longer
// deadline than local plumbing.
const (
	DefaultTimeout = 10 * time.Second
	NetworkTimeout = 60 * time.Second
)

// waitDelay bounds how long we wait for a killed subprocess to release
// its pipes before abandoning the copy goroutines.
const waitDelay = 2 * time.Second

// Runner executes a git subcommand against a repository working directory
// and returns its standard output.
type Runner interface {
	Run(ctx context.Context, repoPath string, args ...string) (string, error)
}

// Executor is the default Runner backed by the system git binary.
type Executor struct {
	gitPath string
}

// NewExecutor creates an Executor. gitPath overrides the binary to invoke;
// empty means "git" resolved from PATH.
func NewExecutor(gitPath string) *Executor {
	if gitPath == "" {
		gitPath = "git"
	}
	return &Executor{gitPath: gitPath}
}

// Run executes git with the tier-appropriate timeout for args.
func (e *Executor) Run(ctx context.Context, repoPath string, args ...string) (string, error) {
	return e.RunWithTimeout(ctx, repoPath, timeoutFor(args), args...)
}

// RunWithTimeout executes git with an explicit deadline.
//
// The repository path must exist on disk. Only a non-zero exit status
// constitutes failure; stderr output alone does not. A non-zero exit whose
// output matches a known logical-success pattern (e.g. "nothing to commit")
// is reported as ErrNothingToCommit rather than a hard failure.
func (e *Executor) RunWithTimeout(ctx context.Context, repoPath string, timeout time.Duration, args ...string) (string, error) {
	if _, err := os.Stat(repoPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRepoNotFound, repoPath)
		}
		return "", fmt.Errorf("failed to stat repository path %s: %w", repoPath, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.gitPath, args...)
	cmd.Dir = repoPath
	cmd.Env = gitEnv()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &GitError{
			Args:   args,
			Dir:    repoPath,
			Stderr: stderr.String(),
			Err:    fmt.Errorf("%w after %s", ErrTimeout, timeout),
		}
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return "", fmt.Errorf("%w: %v", ErrGitNotInstalled, err)
	}

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	combined := stdout.String() + stderr.String()
	if sentinel := logicalCondition(combined); sentinel != nil {
		return stdout.String(), &GitError{
			Args:     args,
			Dir:      repoPath,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      sentinel,
		}
	}

	return "", &GitError{
		Args:     args,
		Dir:      repoPath,
		ExitCode: exitCode,
		Stderr:   stderr.String(),
		Err:      classifyOutput(combined, err),
	}
}

// timeoutFor selects the timeout tier for an argument vector. Anything
// touching the network gets the long deadline.
func timeoutFor(args []string) time.Duration {
	for _, a := range args {
		switch a {
		case "push", "pull", "fetch", "clone":
			return NetworkTimeout
		}
	}
	return DefaultTimeout
}

// gitEnv returns the subprocess environment with interactive credential
// prompting disabled. This is mandatory, not configurable: a hung
// username/password prompt would otherwise block the worker until timeout.
func gitEnv() []string {
	env := os.Environ()
	env = append(env, "GIT_TERMINAL_PROMPT=0")
	return env
}

// logicalCondition maps known non-zero-exit outputs to logical-success
// sentinels. Returns nil when the output indicates a genuine failure.
func logicalCondition(output string) error {
	if strings.Contains(output, "nothing to commit") ||
		strings.Contains(output, "nothing added to commit") {
		return ErrNothingToCommit
	}
	return nil
}

// classifyOutput refines a raw exec failure using well-known git stderr
// patterns so callers can branch on sentinels instead of scraping text.
func classifyOutput(output string, err error) error {
	switch {
	case strings.Contains(output, "not a git repository"):
		return fmt.Errorf("%w: %v", ErrNotGitRepository, err)
	case strings.Contains(output, "no upstream branch") ||
		strings.Contains(output, "no tracking information"):
		return fmt.Errorf("%w: %v", ErrNoUpstream, err)
	case strings.Contains(output, "[rejected]") ||
		strings.Contains(output, "non-fast-forward") ||
		strings.Contains(output, "stale info"):
		return fmt.Errorf("%w: %v", ErrPushRejected, err)
	case strings.Contains(output, "No configured push destination") ||
		strings.Contains(output, "does not appear to be a git repository"):
		return fmt.Errorf("%w: %v", ErrNoRemote, err)
	default:
		return err
	}
}
