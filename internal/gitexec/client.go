package gitexec

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RepositoryHandle is a point-in-time view of a repository. It is resolved
// lazily and never cached longer than the branch TTL: the branch can change
// on checkout without any HEAD-commit event.
type RepositoryHandle struct {
	Path            string
	CurrentBranch   string
	HasRemoteOrigin bool
}

// Client issues read-only git queries through a Runner, memoizing results
// in a ResultCache with operation-appropriate TTLs.
type Client struct {
	runner Runner
	cache  *ResultCache
}

// NewClient creates a Client over runner and cache.
func NewClient(runner Runner, cache *ResultCache) *Client {
	return &Client{runner: runner, cache: cache}
}

// Runner exposes the underlying runner for mutating operations.
func (c *Client) Runner() Runner {
	return c.runner
}

// InvalidateRepo drops every cached query result for repoPath.
func (c *Client) InvalidateRepo(repoPath string) {
	c.cache.Invalidate(repoPath)
}

// CurrentBranch returns the checked-out branch name, or the empty string
// in detached HEAD state.
func (c *Client) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return c.cache.GetOrCompute(Key("branch", repoPath), TTLBranch, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "branch", "--show-current")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

// HeadCommit returns the full hash of the current HEAD commit.
func (c *Client) HeadCommit(ctx context.Context, repoPath string) (string, error) {
	return c.cache.GetOrCompute(Key("head", repoPath), TTLStatus, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "rev-parse", "HEAD")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

// CommitMessage returns the full message of the given commit. Commit
// metadata is immutable, so the result is cached for a long time.
func (c *Client) CommitMessage(ctx context.Context, repoPath, hash string) (string, error) {
	return c.cache.GetOrCompute(Key("message", repoPath, hash), TTLCommitMeta, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "log", "-1", "--pretty=format:%B", hash)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

// CommitAuthor returns the author of the given commit as "Name <email>".
func (c *Client) CommitAuthor(ctx context.Context, repoPath, hash string) (string, error) {
	return c.cache.GetOrCompute(Key("author", repoPath, hash), TTLCommitMeta, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "log", "-1", "--pretty=format:%an <%ae>", hash)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

// RemoteURL returns the URL of the origin remote. Returns ErrNoRemote when
// origin is not configured.
func (c *Client) RemoteURL(ctx context.Context, repoPath string) (string, error) {
	return c.cache.GetOrCompute(Key("remote-url", repoPath), TTLRemoteURL, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "remote", "get-url", "origin")
		if err != nil {
			return "", fmt.Errorf("%w: origin", ErrNoRemote)
		}
		return strings.TrimSpace(out), nil
	})
}

// HasRemoteOrigin reports whether an origin remote is configured.
func (c *Client) HasRemoteOrigin(ctx context.Context, repoPath string) (bool, error) {
	out, err := c.cache.GetOrCompute(Key("remotes", repoPath), TTLRemoteURL, func() (string, error) {
		return c.runner.Run(ctx, repoPath, "remote")
	})
	if err != nil {
		return false, err
	}
	for _, name := range strings.Fields(out) {
		if name == "origin" {
			return true, nil
		}
	}
	return false, nil
}

// UnpushedCount returns how many commits on the current branch have not
// been pushed to its upstream. A branch without an upstream counts every
// commit as unpushed.
func (c *Client) UnpushedCount(ctx context.Context, repoPath string) (int, error) {
	out, err := c.cache.GetOrCompute(Key("unpushed", repoPath), TTLUnpushed, func() (string, error) {
		out, err := c.runner.Run(ctx, repoPath, "rev-list", "--count", "@{u}..HEAD")
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		// No upstream: nothing has ever been pushed, so every commit
		// is unpushed.
		out, err = c.runner.Run(ctx, repoPath, "rev-list", "--count", "HEAD")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func (c *Client) HasChanges(ctx context.Context, repoPath string) (bool, error) {
	out, err := c.cache.GetOrCompute(Key("status", repoPath), TTLStatus, func() (string, error) {
		return c.runner.Run(ctx, repoPath, "status", "--porcelain")
	})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Resolve builds a RepositoryHandle for repoPath. The handle shares the
// branch TTL, so a stale branch name is bounded by seconds.
func (c *Client) Resolve(ctx context.Context, repoPath string) (RepositoryHandle, error) {
	branch, err := c.CurrentBranch(ctx, repoPath)
	if err != nil {
		return RepositoryHandle{}, err
	}
	hasOrigin, err := c.HasRemoteOrigin(ctx, repoPath)
	if err != nil {
		return RepositoryHandle{}, err
	}
	return RepositoryHandle{
		Path:            repoPath,
		CurrentBranch:   branch,
		HasRemoteOrigin: hasOrigin,
	}, nil
}
