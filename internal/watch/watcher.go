// Package watch emits HEAD-change events for local git repositories.
//
// It watches each repository's .git directory (HEAD and refs/heads) with
// fsnotify and resolves the new head commit and branch through go-git, so
// event production never shells out.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5"

	"github.com/iequalsone/committrail/internal/tracker"
)

// Watcher monitors git repositories and emits tracker.Event on every HEAD
// change, including no-op refreshes. Downstream dedupe and debounce are
// the detector's job.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan tracker.Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	repos   map[string]string // watched .git path -> repo root
}

// New creates a Watcher. It must be started with Start() before it emits
// events.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:    fsw,
		events: make(chan tracker.Event, 100),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
		repos:  make(map[string]string),
	}, nil
}

// Start begins watching the given repository roots. Each must contain a
// .git directory.
func (w *Watcher) Start(repoPaths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for _, root := range repoPaths {
		gitDir := filepath.Join(root, ".git")
		headsDir := filepath.Join(gitDir, "refs", "heads")

		if err := w.fsw.Add(gitDir); err != nil {
			w.removeAllLocked()
			return fmt.Errorf("failed to watch %s: %w", gitDir, err)
		}
		w.repos[gitDir] = root

		// refs/heads may not exist yet in a fresh repo; HEAD coverage
		// alone still catches the first commit.
		if err := w.fsw.Add(headsDir); err == nil {
			w.repos[headsDir] = root
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops watching and closes the event channels. Blocks until the
// event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of HEAD-change events. Closed on Stop.
func (w *Watcher) Events() <-chan tracker.Event {
	return w.events
}

// Errors returns the channel of watcher errors. Closed on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) removeAllLocked() {
	for dir := range w.repos {
		_ = w.fsw.Remove(dir)
		delete(w.repos, dir)
	}
}

// processEvents converts fsnotify events into resolved HEAD-change events.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			root, relevant := w.relevantRepo(event)
			if !relevant {
				continue
			}
			ev, err := ResolveHead(root)
			if err != nil {
				// Transient states (mid-checkout, unborn branch) are
				// expected; the next event will catch up.
				continue
			}
			select {
			case w.events <- ev:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// relevantRepo maps an fsnotify event to the repository it belongs to,
// filtering out noise like index lock churn.
func (w *Watcher) relevantRepo(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return "", false
	}

	name := filepath.Base(event.Name)
	dir := filepath.Dir(event.Name)

	w.mu.Lock()
	root, ok := w.repos[dir]
	w.mu.Unlock()
	if !ok {
		return "", false
	}

	// Inside .git itself only HEAD matters; inside refs/heads every
	// branch ref update matters.
	if filepath.Base(dir) == ".git" && name != "HEAD" {
		return "", false
	}
	return root, true
}

// ResolveHead opens the repository read-only and returns its current head
// commit and branch as an event.
func ResolveHead(repoRoot string) (tracker.Event, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return tracker.Event{}, fmt.Errorf("failed to open repository %s: %w", repoRoot, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return tracker.Event{}, fmt.Errorf("failed to resolve HEAD for %s: %w", repoRoot, err)
	}

	branch := ""
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}

	return tracker.Event{
		HeadCommit: ref.Hash().String(),
		Branch:     branch,
		RepoPath:   repoRoot,
	}, nil
}
