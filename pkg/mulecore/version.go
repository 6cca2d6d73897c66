package mulecore

import (
	"github.com/bft-labs/mulecore/pkg/journal"
	"github.com/bft-labs/mulecore/pkg/lifecycle"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/objectstore"
	"github.com/bft-labs/mulecore/pkg/queue"
	"github.com/bft-labs/mulecore/pkg/queuestore"
	"github.com/bft-labs/mulecore/pkg/registry"
)

// Version information for the mulecore module.
const (
	// Version is the current version of the mulecore module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the versions of all sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"mulecore":    Version,
		"lifecycle":   lifecycle.Version,
		"registry":    registry.Version,
		"queue":       queue.Version,
		"queuestore":  queuestore.Version,
		"objectstore": objectstore.Version,
		"journal":     journal.Version,
		"log":         log.Version,
	}
}

// CompatibilityMatrix returns the minimum compatible version of each sub-module.
func CompatibilityMatrix() map[string]string {
	return map[string]string{
		"mulecore":    MinCompatibleVersion,
		"lifecycle":   lifecycle.MinCompatibleVersion,
		"registry":    registry.MinCompatibleVersion,
		"queue":       queue.MinCompatibleVersion,
		"queuestore":  queuestore.MinCompatibleVersion,
		"objectstore": objectstore.MinCompatibleVersion,
		"journal":     journal.MinCompatibleVersion,
		"log":         log.MinCompatibleVersion,
	}
}
