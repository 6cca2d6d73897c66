// Package mulecore provides a lifecycle-managed container hosting
// transactional queues.
//
// Example usage:
//
//	c, err := core.New(mulecore.Config{
//	    DataDir:      "/var/lib/mulecore",
//	    DefaultQueue: queue.Configuration{Persistent: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Dispose()
package mulecore

import (
	core "github.com/bft-labs/mulecore/pkg/mulecore"
)

// Config configures a Container.
type Config = core.Config

// Container hosts registered components and the queue manager.
type Container = core.Container

// Option configures a Container.
type Option = core.Option

// New creates a container. See pkg/mulecore for the options.
func New(cfg Config, opts ...Option) (*Container, error) {
	return core.New(cfg, opts...)
}

// Version is the version of the container module.
const Version = core.Version
