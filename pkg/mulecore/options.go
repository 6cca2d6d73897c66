package mulecore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/mulecore/pkg/lifecycle"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/objectstore"
)

// Option configures a Container.
type Option func(*options)

type object struct {
	name      string
	value     any
	dependsOn []string
}

type options struct {
	logger     log.Logger
	listener   lifecycle.Listener
	emitter    lifecycle.EventEmitter
	registerer prometheus.Registerer
	strategy   objectstore.Strategy
	objects    []object

	watchPath     string
	watchDebounce time.Duration
}

// WithLogger sets the logger used by the container and everything it creates.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotificationListener receives a notification before and after every
// container phase.
func WithNotificationListener(l lifecycle.Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithEventEmitter is called after every completed container phase.
func WithEventEmitter(e lifecycle.EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithRegisterer registers queue metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPersistenceStrategy stores persistent queues through s instead of
// queue files under the data directory.
func WithPersistenceStrategy(s objectstore.Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithObject registers obj under name before the first phase runs.
func WithObject(name string, obj any, dependsOn ...string) Option {
	return func(o *options) {
		o.objects = append(o.objects, object{name: name, value: obj, dependsOn: dependsOn})
	}
}

// WithConfigWatcher reloads the [[queue]] tables of the TOML file at path
// whenever it changes while the container runs.
//
// Usage:
//
//	c, err := mulecore.New(cfg,
//	    mulecore.WithConfigWatcher("/etc/mulecore/config.toml", 100*time.Millisecond),
//	)
func WithConfigWatcher(path string, debounce time.Duration) Option {
	return func(o *options) {
		o.watchPath = path
		o.watchDebounce = debounce
	}
}
