package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/iequalsone/committrail/internal/logger"
)

// DefaultQuietWindow is the debounce window for coalescing HEAD-change
// bursts. Editors routinely fire several notifications for one action.
const DefaultQuietWindow = 300 * time.Millisecond

// CursorStore persists the last processed commit per repository.
type CursorStore interface {
	Get(ctx context.Context, repoPath string) (string, error)
	Set(ctx context.Context, repoPath, commit string) error
}

// ProcessFunc handles an accepted event. It runs on the repository's
// worker goroutine, so invocations for one repository never overlap.
type ProcessFunc func(ctx context.Context, ev Event) error

// branchSet answers excluded-branch membership. Shared by every path
// that applies the exclusion policy.
type branchSet map[string]struct{}

func newBranchSet(names []string) branchSet {
	s := make(branchSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s branchSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// Detector consumes raw HEAD-change events, coalesces bursts within a
// quiet window (newest event wins), drops events already covered by the
// persisted cursor, and serializes processing per repository.
type Detector struct {
	cursors  CursorStore
	excluded branchSet
	quiet    time.Duration
	process  ProcessFunc
	log      logger.Logger

	mu      sync.Mutex
	workers map[string]chan Event
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewDetector creates a Detector. quiet <= 0 uses DefaultQuietWindow.
func NewDetector(cursors CursorStore, excludedBranches []string, quiet time.Duration, process ProcessFunc, log logger.Logger) *Detector {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &Detector{
		cursors:  cursors,
		excluded: newBranchSet(excludedBranches),
		quiet:    quiet,
		process:  process,
		log:      log,
		workers:  make(map[string]chan Event),
	}
}

// Start makes the detector accept events until ctx is cancelled.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
}

// Stop cancels all workers and waits for in-flight processing to finish.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()

	// The workers have exited; drop their channels so a restart spawns
	// fresh ones instead of parking events in dead queues.
	d.mu.Lock()
	d.workers = make(map[string]chan Event)
	d.mu.Unlock()
}

// Offer hands a raw event to the detector. It never blocks: each
// repository holds at most one pending event and the newest wins.
func (d *Detector) Offer(ev Event) {
	if ev.HeadCommit == "" || ev.RepoPath == "" {
		return
	}

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	ch, ok := d.workers[ev.RepoPath]
	if !ok {
		ch = make(chan Event, 1)
		d.workers[ev.RepoPath] = ch
		d.wg.Add(1)
		go d.runWorker(ch)
	}
	d.mu.Unlock()

	// Newest-wins: displace any queued event rather than block.
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// runWorker debounces and processes events for a single repository.
// Processing is serialized: an event arriving mid-run waits in the
// single-slot channel until the run completes.
func (d *Detector) runWorker(ch chan Event) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-ch:
			timer := time.NewTimer(d.quiet)
		debounce:
			for {
				select {
				case next := <-ch:
					ev = next
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(d.quiet)
				case <-timer.C:
					break debounce
				case <-d.ctx.Done():
					timer.Stop()
					return
				}
			}
			d.handle(ev)
		}
	}
}

// handle applies dedupe and branch exclusion, then invokes the
// downstream pipeline.
func (d *Detector) handle(ev Event) {
	ctx := d.ctx

	last, err := d.cursors.Get(ctx, ev.RepoPath)
	if err != nil {
		d.log.Error("failed to read cursor for %s: %v", ev.RepoPath, err)
		return
	}
	if last == ev.HeadCommit {
		d.log.Debug("commit %s already processed for %s", shortHash(ev.HeadCommit), ev.RepoPath)
		return
	}

	if d.excluded.has(ev.Branch) {
		// Terminal skip: advance the cursor so the commit is never
		// reconsidered, but write and push nothing.
		if err := d.cursors.Set(ctx, ev.RepoPath, ev.HeadCommit); err != nil {
			d.log.Error("failed to advance cursor for excluded branch %s: %v", ev.Branch, err)
		}
		d.log.Debug("skipping excluded branch %s in %s", ev.Branch, ev.RepoPath)
		return
	}

	if err := d.process(ctx, ev); err != nil {
		d.log.Warn("processing %s@%s failed: %v", ev.RepoPath, shortHash(ev.HeadCommit), err)
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
