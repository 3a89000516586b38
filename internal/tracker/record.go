// Package tracker implements the commit mirroring pipeline: change
// detection with dedupe and debounce, tracking-log appends, the push
// reconciliation ladder, and error classification.
package tracker

import (
	"fmt"
	"time"
)

// Event is an inbound "HEAD changed" notification for a watched
// repository. HeadCommit or Branch may be empty when the repository is in
// an unborn or detached state.
type Event struct {
	HeadCommit string
	Branch     string
	RepoPath   string
}

// CommitRecord is the metadata mirrored into the tracking log for one
// commit. Immutable once constructed; written once, never mutated.
type CommitRecord struct {
	CommitID  string
	Message   string
	Author    string
	Branch    string
	RepoPath  string
	Timestamp string
}

// NewCommitRecord builds a record stamped with the current time.
func NewCommitRecord(commitID, message, author, branch, repoPath string) CommitRecord {
	return CommitRecord{
		CommitID:  commitID,
		Message:   message,
		Author:    author,
		Branch:    branch,
		RepoPath:  repoPath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// FormatBlock renders the record in the tracking file block format. The
// shape is load-bearing: existing tracking histories use it, so it must
// not change.
func (r CommitRecord) FormatBlock() string {
	return fmt.Sprintf(
		"Commit: %s\nMessage: %s\nDate: %s\nBranch: %s\nRepository Path: %s\n\n",
		r.CommitID, r.Message, r.Timestamp, r.Branch, r.RepoPath,
	)
}
