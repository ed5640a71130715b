package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes and hands the fresh
// Config to registered handlers. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	handlers []func(Config)
	overlay  func(*Config) error

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher returns a Watcher for path. Nothing is watched until Start.
func NewWatcher(path string, debounce time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		log:      log,
		done:     make(chan struct{}),
	}
}

// OnReload registers h. Handlers run on the watcher goroutine.
func (w *Watcher) OnReload(h func(Config)) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Overlay sets fn to run on every reloaded file before it is validated,
// the way command-line flags are layered over the file at startup.
func (w *Watcher) Overlay(fn func(*Config) error) {
	w.mu.Lock()
	w.overlay = fn
	w.mu.Unlock()
}

// Start watches the file's directory, so editors that replace the file by
// rename are still seen.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()
	w.log.Info("config watcher started", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends the watch and waits for the goroutine to exit.
func (w *Watcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	overlay := w.overlay
	w.mu.Unlock()

	cfg, err := LoadOverlay(w.path, overlay)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous settings", "path", w.path, "error", err)
		return
	}
	w.log.Info("config reloaded", "path", w.path)

	w.mu.Lock()
	handlers := slices.Clone(w.handlers)
	w.mu.Unlock()
	for _, h := range handlers {
		h(cfg)
	}
}
