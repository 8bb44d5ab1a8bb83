package prompt

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a builder's template when the template file changes
type Watcher struct {
	mu sync.Mutex

	path    string
	builder *Builder
	logger  *errors.Logger

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}
	doneChan   chan struct{}

	// onReload is called after every reload attempt; used by tests
	onReload func(error)

	running bool
}

// NewWatcher creates a watcher for path feeding builder
func NewWatcher(path string, builder *Builder, debounceDelay time.Duration, logger *errors.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}
	return &Watcher{
		path:          filepath.Clean(path),
		builder:       builder,
		logger:        logger,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		doneChan:      make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched as well so that
// editors replacing the file through a rename are noticed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("prompt watcher is already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(w.path), err)
	}

	w.fsWatcher = fsWatcher
	w.running = true
	go w.watchLoop()

	w.logger.Info("Prompt template watcher started", "file", w.path, "debounce_delay", w.debounceDelay)
	return nil
}

// Stop stops the watcher and waits for its loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.running = false
	fsWatcher := w.fsWatcher
	w.mu.Unlock()

	<-w.doneChan
	if err := fsWatcher.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}

	w.logger.Info("Prompt template watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Reload reads the file and installs it. On failure the current template stays.
func (w *Watcher) Reload() error {
	content, err := config.ReadPromptFile(w.path)
	if err == nil {
		err = w.builder.SetTemplate(content)
	}

	if err != nil {
		w.logger.Warn("Prompt template reload rejected, keeping previous template", "file", w.path, "error", err)
	} else {
		w.logger.Info("Prompt template reloaded", "file", w.path, "characters", len(content))
	}

	if w.onReload != nil {
		w.onReload(err)
	}
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.doneChan)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "Prompt watcher error")

		case <-w.reloadChan:
			_ = w.Reload()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.reloadChan <- struct{}{}:
		default:
		}
	})
}
