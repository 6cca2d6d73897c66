// Package registry is a named object registry that hands managed objects to
// the lifecycle engine in dependency order.
//
// Objects are registered under a unique name with the names of the objects
// they depend on. LookupObjectsForLifecycle returns dependencies before
// their dependents; unrelated objects keep registration order.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package registry
