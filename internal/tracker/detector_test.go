package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iequalsone/committrail/internal/logger"
)

// memCursors is an in-memory CursorStore.
type memCursors struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCursors() *memCursors {
	return &memCursors{entries: map[string]string{}}
}

func (m *memCursors) Get(ctx context.Context, repoPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[repoPath], nil
}

func (m *memCursors) Set(ctx context.Context, repoPath, commit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[repoPath] = commit
	return nil
}

func (m *memCursors) get(repoPath string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[repoPath]
}

// eventRecorder captures processed events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) process(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestDetectorDebouncesBursts(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 50*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	defer d.Stop()

	// A burst within the quiet window coalesces to the newest event.
	d.Offer(Event{HeadCommit: "aaa111", Branch: "main", RepoPath: "/repo"})
	d.Offer(Event{HeadCommit: "bbb222", Branch: "main", RepoPath: "/repo"})
	d.Offer(Event{HeadCommit: "ccc333", Branch: "main", RepoPath: "/repo"})

	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) >= 1 })
	time.Sleep(150 * time.Millisecond)

	events := rec.snapshot()
	require.Len(t, events, 1, "a burst must collapse to a single run")
	assert.Equal(t, "ccc333", events[0].HeadCommit, "the newest event wins")
}

func TestDetectorDropsAlreadyProcessedCommit(t *testing.T) {
	cursors := newMemCursors()
	require.NoError(t, cursors.Set(context.Background(), "/repo", "abc123"))

	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 20*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	defer d.Stop()

	d.Offer(Event{HeadCommit: "abc123", Branch: "main", RepoPath: "/repo"})
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, rec.snapshot(), "a replayed commit must not be processed again")
}

func TestDetectorExcludedBranchAdvancesCursor(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, []string{"wip", "tmp"}, 20*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	defer d.Stop()

	d.Offer(Event{HeadCommit: "abc123", Branch: "wip", RepoPath: "/repo"})

	waitFor(t, 2*time.Second, func() bool { return cursors.get("/repo") == "abc123" })
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, rec.snapshot(), "excluded branches are skipped, not queued")
	assert.Equal(t, "abc123", cursors.get("/repo"),
		"the cursor must still advance so the commit is never reconsidered")
}

func TestDetectorDropsEmptyEvents(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 20*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	defer d.Stop()

	d.Offer(Event{HeadCommit: "", Branch: "main", RepoPath: "/repo"})
	d.Offer(Event{HeadCommit: "abc123", Branch: "main", RepoPath: ""})
	time.Sleep(150 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}

func TestDetectorSeparatesRepositories(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 20*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	defer d.Stop()

	d.Offer(Event{HeadCommit: "aaa111", Branch: "main", RepoPath: "/repo/a"})
	d.Offer(Event{HeadCommit: "bbb222", Branch: "main", RepoPath: "/repo/b"})

	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) >= 2 })

	seen := map[string]string{}
	for _, ev := range rec.snapshot() {
		seen[ev.RepoPath] = ev.HeadCommit
	}
	assert.Equal(t, "aaa111", seen["/repo/a"])
	assert.Equal(t, "bbb222", seen["/repo/b"])
}

func TestDetectorRestartAcceptsNewEvents(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 20*time.Millisecond, rec.process, logger.Nop{})

	d.Start(context.Background())
	d.Offer(Event{HeadCommit: "aaa111", Branch: "main", RepoPath: "/repo"})
	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) >= 1 })
	d.Stop()

	d.Start(context.Background())
	defer d.Stop()
	d.Offer(Event{HeadCommit: "bbb222", Branch: "main", RepoPath: "/repo"})
	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) >= 2 })

	events := rec.snapshot()
	assert.Equal(t, "bbb222", events[1].HeadCommit,
		"a restarted detector must process freshly offered events")
}

func TestDetectorOfferAfterStopIsNoop(t *testing.T) {
	cursors := newMemCursors()
	rec := &eventRecorder{}
	d := NewDetector(cursors, nil, 20*time.Millisecond, rec.process, logger.Nop{})
	d.Start(context.Background())
	d.Stop()

	d.Offer(Event{HeadCommit: "abc123", Branch: "main", RepoPath: "/repo"})
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}
