// Package configwatch reloads queue configuration when the TOML config
// file changes.
package configwatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/mulecore/internal/config"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/queue"
)

// Defaults.
const (
	DefaultDebounceDelay = 100 * time.Millisecond
	DefaultRetryInitial  = 500 * time.Millisecond
	DefaultRetryMax      = 10 * time.Second
)

var ErrAlreadyRunning = errors.New("configwatch: already running")

// QueueConfigurer receives reloaded queue configurations.
// *queue.Manager satisfies this interface.
type QueueConfigurer interface {
	SetQueueConfiguration(name string, c queue.Configuration) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a burst of file events must settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithRetry sets the backoff bounds used while the config directory cannot be watched.
func WithRetry(initial, max time.Duration) Option {
	return func(w *Watcher) {
		w.retryInitial = initial
		w.retryMax = max
	}
}

// WithReloadHook calls fn after every reload attempt.
func WithReloadHook(fn func(queues []config.QueueConfig, err error)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher monitors one config file via fsnotify and applies its [[queue]]
// tables to a QueueConfigurer. It takes part in the start and stop phases.
type Watcher struct {
	path   string
	target QueueConfigurer
	logger log.Logger

	debounceDelay time.Duration
	retryInitial  time.Duration
	retryMax      time.Duration
	onReload      func([]config.QueueConfig, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped watcher for the config file at path.
func New(path string, target QueueConfigurer, opts ...Option) *Watcher {
	w := &Watcher{
		path:          path,
		target:        target,
		debounceDelay: DefaultDebounceDelay,
		retryInitial:  DefaultRetryInitial,
		retryMax:      DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = log.OrNoop(w.logger).With(log.String("component", "config-watcher"))
	return w
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Start begins watching in the background and returns at once. The file is
// applied as soon as its directory is being watched, then after every
// settled change.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(ctx)

	w.logger.Info("config watcher started", log.String("path", w.path))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	w.wg.Wait()
	w.logger.Info("config watcher stopped")
	return nil
}

// Running reports whether the watch loop has been started and not stopped.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	retry := newBackoff(w.retryInitial, w.retryMax)
	for {
		err := watcher.Add(dir)
		if err == nil {
			break
		}
		w.logger.Warn("config watcher: failed to watch directory",
			log.String("dir", dir),
			log.Err(err),
		)
		if !retry.wait(ctx) {
			return
		}
	}
	retry.reset()

	w.apply()

	name := filepath.Base(w.path)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle = time.After(w.debounceDelay)

		case <-settle:
			settle = nil
			w.apply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher: watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) apply() {
	queues, err := w.Reload()
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
	} else {
		w.logger.Info("config reloaded", log.String("path", w.path), log.Int("queues", len(queues)))
	}
	if w.onReload != nil {
		w.onReload(queues, err)
	}
}

// Reload reads the config file and applies every queue it lists. Queues
// that fail validation are skipped; the others are still applied.
func (w *Watcher) Reload() ([]config.QueueConfig, error) {
	fc, err := config.LoadFileConfig(w.path)
	if err != nil {
		return nil, fmt.Errorf("configwatch: load %s: %w", w.path, err)
	}

	var errs []error
	applied := make([]config.QueueConfig, 0, len(fc.Queues))
	for _, q := range fc.Queues {
		err := w.target.SetQueueConfiguration(q.Name, queue.Configuration{
			Capacity:   q.Capacity,
			Persistent: q.Persistent,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("queue %q: %w", q.Name, err))
			continue
		}
		applied = append(applied, q)
	}
	return applied, errors.Join(errs...)
}
