// Package lifecycle implements the phase state machine that moves managed
// components through initialise, start, stop and dispose.
//
// A Manager owns an ordered index of phases and a set of pairs. A phase may
// be fired when it is the next phase in the index, when it forms a pair with
// the current phase (start and stop toggle without re-initialising), or when
// it is dispose, which is legal from anywhere. Firing a phase further ahead
// applies every phase in between. Only one phase executes at a time.
//
// # Usage
//
// Drive the contents of a registry:
//
//	mgr := lifecycle.NewRegistryManager("app", reg,
//	    lifecycle.WithLogger(logger),
//	    lifecycle.WithListener(listener),
//	)
//
//	if err := mgr.FireLifecycle(lifecycle.Start); err != nil {
//	    // initialise or start failed and the remaining objects were skipped
//	}
//
//	_ = mgr.FireLifecycle(lifecycle.Stop)    // failures logged, never returned
//	_ = mgr.FireLifecycle(lifecycle.Dispose)
//
// Objects take part in a phase by implementing Initialisable, Startable,
// Stoppable or Disposable. Initialise and start halt on the first failure;
// stop and dispose log failures and carry on with the remaining objects.
//
// A single component can use SimpleManager:
//
//	lc := lifecycle.NewSimpleManager("queue-manager", qm)
//	err := lc.FireStart(qm.doStart)
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
