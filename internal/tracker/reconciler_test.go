package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
)

// scriptedRunner answers git invocations from a table keyed by the joined
// argument vector and records every call.
type scriptedRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]response
}

type response struct {
	out string
	err error
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{responses: map[string]response{}}
}

func (s *scriptedRunner) on(args string, out string, err error) {
	s.responses[args] = response{out: out, err: err}
}

func (s *scriptedRunner) Run(ctx context.Context, repoPath string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.mu.Unlock()

	if r, ok := s.responses[key]; ok {
		return r.out, r.err
	}

	// Longest-prefix match lets tests script "commit -m" without the
	// timestamped message text.
	best := ""
	for k := range s.responses {
		if strings.HasPrefix(key, k+" ") && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		r := s.responses[best]
		return r.out, r.err
	}
	return "", errors.New("unscripted git invocation: " + key)
}

func (s *scriptedRunner) callsMatching(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c == prefix || strings.HasPrefix(c, prefix+" ") {
			out = append(out, c)
		}
	}
	return out
}

func newTestReconciler(sr *scriptedRunner) *Reconciler {
	client := gitexec.NewClient(sr, gitexec.NewResultCache())
	return NewReconciler(sr, client, logger.Nop{})
}

func nothingToCommitErr() error {
	return &gitexec.GitError{
		Args:     []string{"commit"},
		ExitCode: 1,
		Err:      gitexec.ErrNothingToCommit,
	}
}

func TestReconcilePlainPush(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "origin\n", nil)
	sr.on("push", "", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomePushed, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Len(t, sr.callsMatching("push"), 1, "a successful plain push ends the ladder")
}

func TestReconcileEscalatesToUpstreamPush(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "origin\n", nil)
	sr.on("push", "", errors.New("fatal: The current branch main has no upstream branch."))
	sr.on("branch --show-current", "main\n", nil)
	sr.on("push -u origin main", "", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomePushedWithUpstream, res.Outcome)
	assert.Empty(t, sr.callsMatching("push --force-with-lease"),
		"the ladder must stop at the first success")
}

func TestReconcileEscalatesToForceWithLease(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "origin\n", nil)
	sr.on("push", "", errors.New("rejected"))
	sr.on("branch --show-current", "main\n", nil)
	sr.on("push -u origin main", "", errors.New("rejected"))
	sr.on("push --force-with-lease", "", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomeForcedWithLease, res.Outcome)
}

func TestReconcileLadderExhausted(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "origin\n", nil)
	pushErr := errors.New("remote rejected")
	sr.on("push", "", pushErr)
	sr.on("branch --show-current", "main\n", nil)
	sr.on("push -u origin main", "", pushErr)
	sr.on("push --force-with-lease", "", pushErr)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomeLocalOnly, res.Outcome)
	assert.Equal(t, ReasonPushExhausted, res.Reason)
	assert.Error(t, res.Err, "exhaustion must preserve the last push error")
}

func TestReconcileNoRemoteSkipsPush(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomeLocalOnly, res.Outcome)
	assert.Equal(t, ReasonNoRemote, res.Reason)
	assert.NoError(t, res.Err, "a missing remote is a normal state, not an error")
	assert.Empty(t, sr.callsMatching("push"), "no push may be attempted without a remote")
}

func TestReconcileNothingToCommitNothingUnpushed(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nothingToCommitErr())
	sr.on("rev-list --count @{u}..HEAD", "0\n", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomeNothingToCommit, res.Outcome)
	assert.Empty(t, sr.callsMatching("push"))
}

func TestReconcileNothingToCommitWithUnpushedStillPushes(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nothingToCommitErr())
	sr.on("rev-list --count @{u}..HEAD", "2\n", nil)
	sr.on("remote", "origin\n", nil)
	sr.on("push", "", nil)

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomePushed, res.Outcome,
		"earlier local-only commits must be pushed when connectivity returns")
}

func TestReconcileStageFailureAborts(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", errors.New("fatal: pathspec did not match"))

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StageStage, res.Stage, "a failed git add is a staging failure")
	assert.Error(t, res.Err)
	assert.Empty(t, sr.callsMatching("commit"), "nothing may run after a failed stage")
}

func TestReconcileCommitFailureAborts(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", &gitexec.GitError{
		Args: []string{"commit"}, ExitCode: 128, Err: errors.New("exit status 128"),
	})

	res := newTestReconciler(sr).Reconcile(context.Background(), "/tracking", "commits.log")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StageCommit, res.Stage)
	assert.Empty(t, sr.callsMatching("push"))
}

func TestReconcileCancelledBetweenLadderSteps(t *testing.T) {
	sr := newScriptedRunner()
	sr.on("add commits.log", "", nil)
	sr.on("commit -m", "", nil)
	sr.on("remote", "origin\n", nil)
	sr.on("push", "", errors.New("network down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestReconciler(sr).Reconcile(ctx, "/tracking", "commits.log")

	assert.Equal(t, OutcomeLocalOnly, res.Outcome)
	assert.Equal(t, ReasonPushExhausted, res.Reason)
	assert.Empty(t, sr.callsMatching("push -u"),
		"cancellation must stop the ladder before the next step")
}
