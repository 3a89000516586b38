package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
)

// Outcome is the terminal state of one reconciliation run.
type Outcome int

const (
	// OutcomePushed: plain push succeeded.
	OutcomePushed Outcome = iota
	// OutcomePushedWithUpstream: push succeeded after setting upstream tracking.
	OutcomePushedWithUpstream
	// OutcomeForcedWithLease: push succeeded with --force-with-lease.
	OutcomeForcedWithLease
	// OutcomeNothingToCommit: no staged changes and nothing unpushed.
	OutcomeNothingToCommit
	// OutcomeLocalOnly: committed locally; push skipped or exhausted.
	OutcomeLocalOnly
	// OutcomeFailed: the run aborted before reaching a push decision.
	OutcomeFailed
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePushed:
		return "pushed"
	case OutcomePushedWithUpstream:
		return "pushed-with-upstream"
	case OutcomeForcedWithLease:
		return "forced-with-lease"
	case OutcomeNothingToCommit:
		return "nothing-to-commit"
	case OutcomeLocalOnly:
		return "committed-locally-only"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reasons.
const (
	ReasonNoRemote       = "no-remote"
	ReasonPushExhausted  = "push-exhausted"
	ReasonBranchExcluded = "branch-excluded"
)

// Result is the terminal outcome of one reconciliation run. The ladder is
// never retried within a run; the next accepted commit event starts a
// fresh one.
type Result struct {
	Outcome Outcome
	Reason  string
	// Stage is the pipeline stage a failed run stopped at. Meaningful
	// only for OutcomeFailed.
	Stage Stage
	Err   error
}

// Reconciler drives the tracking repository through stage, commit, and the
// escalating push ladder. It operates on the tracking repository, never on
// the repositories being observed.
type Reconciler struct {
	runner gitexec.Runner
	client *gitexec.Client
	log    logger.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(runner gitexec.Runner, client *gitexec.Client, log logger.Logger) *Reconciler {
	return &Reconciler{runner: runner, client: client, log: log}
}

// Reconcile stages logFile in the tracking repository, commits it, and
// walks the push ladder: plain push, push -u origin <branch>, then
// --force-with-lease. A commit that cannot be pushed is kept locally and
// reported as OutcomeLocalOnly; local data is never lost.
//
// Cancellation is advisory: it is checked between ladder steps, never
// mid-subprocess.
func (r *Reconciler) Reconcile(ctx context.Context, trackingRepo, logFile string) Result {
	// Stage. A failure here is hard: nothing downstream can proceed.
	if _, err := r.runner.Run(ctx, trackingRepo, "add", logFile); err != nil {
		return Result{Outcome: OutcomeFailed, Stage: StageStage, Err: fmt.Errorf("failed to stage %s: %w", logFile, err)}
	}

	// Commit. "Nothing to commit" is a logical success, not an error.
	nothingToCommit := false
	msg := fmt.Sprintf("Update commit tracking log - %s", time.Now().UTC().Format(time.RFC3339))
	if _, err := r.runner.Run(ctx, trackingRepo, "commit", "-m", msg); err != nil {
		if !gitexec.IsNothingToCommit(err) {
			return Result{Outcome: OutcomeFailed, Stage: StageCommit, Err: fmt.Errorf("failed to commit tracking log: %w", err)}
		}
		nothingToCommit = true
	}
	r.client.InvalidateRepo(trackingRepo)

	if nothingToCommit {
		// Still worth pushing if earlier runs degraded to local-only.
		unpushed, err := r.client.UnpushedCount(ctx, trackingRepo)
		if err != nil || unpushed == 0 {
			return Result{Outcome: OutcomeNothingToCommit}
		}
		r.log.Debug("no new commit but %d unpushed; attempting push", unpushed)
	}

	// Without a remote there is nothing to reconcile against. This is a
	// normal terminal state, not an error.
	hasOrigin, err := r.client.HasRemoteOrigin(ctx, trackingRepo)
	if err != nil {
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonNoRemote, Err: err}
	}
	if !hasOrigin {
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonNoRemote}
	}

	return r.pushLadder(ctx, trackingRepo)
}

// pushLadder attempts each push strategy in order, each step only on
// failure of the previous. Exhaustion degrades to OutcomeLocalOnly.
func (r *Reconciler) pushLadder(ctx context.Context, trackingRepo string) Result {
	if _, err := r.runner.Run(ctx, trackingRepo, "push"); err == nil {
		r.client.InvalidateRepo(trackingRepo)
		return Result{Outcome: OutcomePushed}
	} else {
		r.log.Debug("plain push failed: %v", err)
	}

	if err := ctx.Err(); err != nil {
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonPushExhausted, Err: err}
	}

	branch, err := r.client.CurrentBranch(ctx, trackingRepo)
	if err != nil || branch == "" {
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonPushExhausted, Err: err}
	}

	if _, err := r.runner.Run(ctx, trackingRepo, "push", "-u", "origin", branch); err == nil {
		r.client.InvalidateRepo(trackingRepo)
		return Result{Outcome: OutcomePushedWithUpstream}
	} else {
		r.log.Debug("upstream push failed: %v", err)
	}

	if err := ctx.Err(); err != nil {
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonPushExhausted, Err: err}
	}

	// Safe force: aborts if the remote moved since our last known ref.
	// Never a blind --force.
	if _, err := r.runner.Run(ctx, trackingRepo, "push", "--force-with-lease"); err == nil {
		r.client.InvalidateRepo(trackingRepo)
		return Result{Outcome: OutcomeForcedWithLease}
	} else {
		r.log.Debug("force-with-lease push failed: %v", err)
		return Result{Outcome: OutcomeLocalOnly, Reason: ReasonPushExhausted, Err: err}
	}
}
