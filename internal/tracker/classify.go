package tracker

import (
	"errors"
	"io/fs"
	"os"

	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
)

// ErrorKind is the closed failure taxonomy. Every error crossing the
// classification boundary maps to exactly one kind.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindGitOperation
	KindFilesystem
	KindRepository
	KindNetwork
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindGitOperation:
		return "git-operation"
	case KindFilesystem:
		return "filesystem"
	case KindRepository:
		return "repository"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Stage identifies where in the pipeline a failure occurred. Classification
// depends on it: a timeout during a push is a network problem, a timeout
// during a local query is not.
type Stage int

const (
	StageQuery Stage = iota
	StageAppend
	StageStage
	StageCommit
	StagePush
	StageConfig
	StageWatch
)

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageQuery:
		return "query"
	case StageAppend:
		return "append"
	case StageStage:
		return "stage"
	case StageCommit:
		return "commit"
	case StagePush:
		return "push"
	case StageConfig:
		return "config"
	case StageWatch:
		return "watch"
	default:
		return "unknown"
	}
}

// ConfigError marks a configuration problem requiring user correction.
type ConfigError struct {
	Option string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "configuration error for " + e.Option + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// Details is a classified failure with remediation suggestions. The
// suggestions are data for user prompts, never control flow.
type Details struct {
	Kind        ErrorKind
	Stage       Stage
	Message     string
	Suggestions []string
}

// Fixed, kind-specific suggestion lists.
var suggestionsByKind = map[ErrorKind][]string{
	KindConfiguration: {"Open Settings", "Run Setup"},
	KindGitOperation:  {"Check Git Installation", "Open Terminal"},
	KindFilesystem:    {"Check Permissions", "Verify Tracking Path"},
	KindRepository:    {"Initialize Repository", "Configure Remote"},
	KindNetwork:       {"Check Connection", "Retry Push"},
	KindUnknown:       {"View Logs"},
}

// Classify maps an arbitrary failure plus the stage it occurred at into
// the closed taxonomy. It is a pure function: no logging, no side effects.
func Classify(err error, stage Stage) Details {
	d := Details{Kind: classifyKind(err, stage), Stage: stage}
	if err != nil {
		d.Message = err.Error()
	}
	d.Suggestions = suggestionsByKind[d.Kind]
	return d
}

func classifyKind(err error, stage Stage) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) || stage == StageConfig {
		return KindConfiguration
	}

	switch {
	case errors.Is(err, gitexec.ErrTimeout):
		if stage == StagePush {
			return KindNetwork
		}
		return KindGitOperation
	case errors.Is(err, gitexec.ErrPushRejected):
		return KindNetwork
	case errors.Is(err, gitexec.ErrNotGitRepository),
		errors.Is(err, gitexec.ErrRepoNotFound),
		errors.Is(err, gitexec.ErrNoRemote),
		errors.Is(err, gitexec.ErrNoUpstream):
		return KindRepository
	case errors.Is(err, ErrInvalidPath),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, fs.ErrNotExist):
		return KindFilesystem
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindFilesystem
	}

	var gitErr *gitexec.GitError
	if errors.As(err, &gitErr) {
		return KindGitOperation
	}

	return KindUnknown
}

// Classifier logs classified errors and exposes them as discrete events so
// other components (a status indicator, tests) can react without polling.
type Classifier struct {
	log    logger.Logger
	events chan Details
}

// NewClassifier creates a Classifier. The event channel is buffered;
// events are dropped, not blocked on, when no one is listening.
func NewClassifier(log logger.Logger) *Classifier {
	return &Classifier{
		log:    log,
		events: make(chan Details, 32),
	}
}

// Events returns the classified-error event stream.
func (c *Classifier) Events() <-chan Details {
	return c.events
}

// Report classifies err, logs it, and emits an event. showUser marks
// failures that warrant a visible prompt rather than a passive indicator.
func (c *Classifier) Report(err error, stage Stage, showUser bool) Details {
	d := Classify(err, stage)

	if showUser {
		c.log.Error("%s error during %s: %s (suggestions: %v)", d.Kind, d.Stage, d.Message, d.Suggestions)
	} else {
		c.log.Warn("%s error during %s: %s", d.Kind, d.Stage, d.Message)
	}

	select {
	case c.events <- d:
	default:
	}
	return d
}
