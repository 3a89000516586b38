package tracker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned when a write target escapes the tracking
// root or contains parent-directory traversal segments.
var ErrInvalidPath = errors.New("invalid tracking file path")

// Appender writes commit record blocks to files under a tracking root.
// Writes are append-only: prior content is never truncated or rewritten.
type Appender struct {
	root string
}

// NewAppender creates an Appender confined to root.
func NewAppender(root string) *Appender {
	return &Appender{root: filepath.Clean(root)}
}

// Append validates path and appends the record's block to it, creating
// parent directories as needed. No write occurs on a rejected path.
func (a *Appender) Append(path string, record CommitRecord) error {
	target, err := a.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create tracking log directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open tracking log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(record.FormatBlock()); err != nil {
		return fmt.Errorf("failed to append to tracking log: %w", err)
	}
	return nil
}

// resolve checks that path stays inside the tracking root and rejects any
// ".." segment before cleaning can hide it.
func (a *Appender) resolve(path string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s contains parent traversal", ErrInvalidPath, path)
		}
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(a.root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(a.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes tracking root %s", ErrInvalidPath, path, a.root)
	}
	return target, nil
}
