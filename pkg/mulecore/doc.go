// Package mulecore provides an embeddable container that owns a registry of
// components, drives them through the lifecycle phases and hosts the
// transactional queue manager.
//
// # Basic Usage
//
//	c, err := mulecore.New(mulecore.Config{
//	    DataDir: "/var/lib/mulecore",
//	    Journal: true,
//	    DefaultQueue: queue.Configuration{Persistent: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.Start(); err != nil { // initialises first
//	    log.Fatal(err)
//	}
//	defer c.Dispose() // stops first
//
//	s := c.QueueManager().Session()
//	q, _ := s.Queue("orders")
//	_ = q.Put(ctx, []byte("order-1"))
//
// # Components
//
// Objects registered with [WithObject] or [Container.Register] take part in
// every phase they implement (lifecycle.Initialisable, lifecycle.Startable
// and so on). Dependencies named at registration are started before the
// object and stopped after it. An object registered while the container is
// running is brought up to the container's phase at once.
//
// The queue manager is registered as [QueueManagerName]; objects that use
// queues should name it as a dependency.
//
// # Config Reload
//
// [WithConfigWatcher] watches a TOML file and applies its [[queue]] tables
// to the queue manager while the container runs.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// Use [ModuleVersions] to get versions of all sub-modules and [CompatibilityMatrix]
// to check minimum compatible versions. See version.go for details.
package mulecore
