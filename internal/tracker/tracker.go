package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
)

// Options configures a Tracker.
type Options struct {
	// TrackingRepoPath is the tracking repository root (required).
	TrackingRepoPath string

	// TrackingLogFile is the log file path relative to the tracking root.
	TrackingLogFile string

	// ExcludedBranches are never logged or pushed. Events on them still
	// advance the dedupe cursor.
	ExcludedBranches []string

	// QuietWindow is the debounce window for event bursts.
	QuietWindow time.Duration

	// FlushInterval is how often pending unpushed tracking commits are
	// re-attempted. Zero disables periodic flushing.
	FlushInterval time.Duration
}

// Tracker wires the pipeline together: detector in front, then commit
// metadata queries, the tracking-log append, the push ladder, and error
// classification on every failure path.
type Tracker struct {
	opts       Options
	client     *gitexec.Client
	appender   *Appender
	reconciler *Reconciler
	detector   *Detector
	classifier *Classifier
	cursors    CursorStore
	excluded   branchSet
	log        logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	resultMu   sync.Mutex
	lastResult Result
}

// New creates a Tracker. The classifier's event stream is available via
// Events() for status indicators.
func New(opts Options, client *gitexec.Client, cursors CursorStore, log logger.Logger) (*Tracker, error) {
	if opts.TrackingRepoPath == "" {
		return nil, &ConfigError{Option: "trackingRepoPath", Err: fmt.Errorf("must not be empty")}
	}
	if opts.TrackingLogFile == "" {
		opts.TrackingLogFile = "commit-tracker.log"
	}

	t := &Tracker{
		opts:       opts,
		client:     client,
		appender:   NewAppender(opts.TrackingRepoPath),
		reconciler: NewReconciler(client.Runner(), client, log),
		classifier: NewClassifier(log),
		cursors:    cursors,
		excluded:   newBranchSet(opts.ExcludedBranches),
		log:        log,
	}
	t.detector = NewDetector(cursors, opts.ExcludedBranches, opts.QuietWindow, t.processEvent, log)
	return t, nil
}

// Events returns the classified-error event stream.
func (t *Tracker) Events() <-chan Details {
	return t.classifier.Events()
}

// Start begins accepting events. Blocks only briefly; processing happens
// on per-repository workers.
func (t *Tracker) Start(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.detector.Start(t.ctx)

	if t.opts.FlushInterval > 0 {
		t.wg.Add(1)
		go t.flushLoop()
	}

	t.log.Info("tracker started (tracking repo: %s)", t.opts.TrackingRepoPath)
}

// Stop drains workers and stops background loops.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.detector.Stop()
	t.wg.Wait()
	t.log.Info("tracker stopped")
}

// HandleEvent feeds a raw HEAD-change notification into the pipeline.
func (t *Tracker) HandleEvent(ev Event) {
	t.detector.Offer(ev)
}

// SyncOnce processes a repository's current HEAD immediately, bypassing
// the debounce but not the dedupe. Used by the one-shot sync command.
func (t *Tracker) SyncOnce(ctx context.Context, repoPath string) (Result, error) {
	head, err := t.client.HeadCommit(ctx, repoPath)
	if err != nil {
		t.classifier.Report(err, StageQuery, false)
		return Result{Outcome: OutcomeFailed, Err: err}, err
	}
	branch, err := t.client.CurrentBranch(ctx, repoPath)
	if err != nil {
		t.classifier.Report(err, StageQuery, false)
		return Result{Outcome: OutcomeFailed, Err: err}, err
	}

	last, err := t.cursors.Get(ctx, repoPath)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}, err
	}
	if last == head {
		return Result{Outcome: OutcomeNothingToCommit}, nil
	}

	if t.excluded.has(branch) {
		// Terminal skip, same as the event path: advance the cursor so
		// the commit is never reconsidered, write and push nothing.
		if err := t.cursors.Set(ctx, repoPath, head); err != nil {
			return Result{Outcome: OutcomeFailed, Err: err}, err
		}
		return Result{Outcome: OutcomeNothingToCommit, Reason: ReasonBranchExcluded}, nil
	}

	ev := Event{HeadCommit: head, Branch: branch, RepoPath: repoPath}
	if err := t.processEvent(ctx, ev); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}, err
	}
	t.resultMu.Lock()
	defer t.resultMu.Unlock()
	return t.lastResult, nil
}

// processEvent is the accepted-event pipeline: fetch commit metadata,
// append the record, persist the cursor, reconcile the tracking repo.
//
// Ordering is deliberate: the cursor advances only after the record is
// durably appended and before any push attempt, so a push failure never
// re-processes the commit. A crash between append and cursor persist can
// re-log the same commit (at-least-once delivery).
func (t *Tracker) processEvent(ctx context.Context, ev Event) error {
	// Read-only query failures abort the entry: a record is never
	// written with partial data.
	message, err := t.client.CommitMessage(ctx, ev.RepoPath, ev.HeadCommit)
	if err != nil {
		t.classifier.Report(err, StageQuery, false)
		return fmt.Errorf("failed to read commit message: %w", err)
	}
	author, err := t.client.CommitAuthor(ctx, ev.RepoPath, ev.HeadCommit)
	if err != nil {
		t.classifier.Report(err, StageQuery, false)
		return fmt.Errorf("failed to read commit author: %w", err)
	}

	record := NewCommitRecord(ev.HeadCommit, message, author, ev.Branch, ev.RepoPath)

	if err := t.appender.Append(t.opts.TrackingLogFile, record); err != nil {
		// A write failure before anything was persisted is a hard
		// error requiring user correction.
		t.classifier.Report(err, StageAppend, true)
		return err
	}

	if err := t.cursors.Set(ctx, ev.RepoPath, ev.HeadCommit); err != nil {
		t.classifier.Report(err, StageAppend, false)
		return err
	}

	res := t.reconciler.Reconcile(ctx, t.opts.TrackingRepoPath, t.opts.TrackingLogFile)
	t.resultMu.Lock()
	t.lastResult = res
	t.resultMu.Unlock()
	t.reportOutcome(res)
	return nil
}

// reportOutcome logs terminal reconciliation states. Push-ladder failures
// degrade to an informational notification, never a hard failure: the
// commit is safe locally.
func (t *Tracker) reportOutcome(res Result) {
	switch res.Outcome {
	case OutcomePushed, OutcomePushedWithUpstream, OutcomeForcedWithLease:
		t.log.Info("tracking log synchronized (%s)", res.Outcome)
	case OutcomeNothingToCommit:
		t.log.Debug("tracking log already up to date")
	case OutcomeLocalOnly:
		if res.Reason == ReasonNoRemote {
			t.log.Debug("no remote configured; committed locally")
		} else {
			t.log.Warn("push exhausted; committed locally (will retry on next commit)")
			t.classifier.Report(res.Err, StagePush, false)
		}
	case OutcomeFailed:
		t.classifier.Report(res.Err, res.Stage, false)
	}
}

// flushLoop periodically re-attempts pushes for tracking commits that
// degraded to local-only.
func (t *Tracker) flushLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.flushPending()
		}
	}
}

// flushPending runs the ladder when the tracking repo has unpushed
// commits and nothing else in flight.
func (t *Tracker) flushPending() {
	ctx := t.ctx

	unpushed, err := t.client.UnpushedCount(ctx, t.opts.TrackingRepoPath)
	if err != nil || unpushed == 0 {
		return
	}

	t.log.Debug("flushing %d unpushed tracking commit(s)", unpushed)
	res := t.reconciler.Reconcile(ctx, t.opts.TrackingRepoPath, t.opts.TrackingLogFile)
	t.reportOutcome(res)
}

// TrackingLogPath returns the absolute path of the tracking log file.
func (t *Tracker) TrackingLogPath() string {
	return filepath.Join(t.opts.TrackingRepoPath, t.opts.TrackingLogFile)
}
