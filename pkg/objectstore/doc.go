// Package objectstore provides the persistence strategies used by the
// legacy queue path to keep message payloads outside the queue itself.
//
// A Strategy stores opaque values under (queue, key). MemoryStrategy keeps
// them in a map; FileStrategy writes one file per value under
// <dir>/<queue>/<key>.msg using a temp file and rename, so a crash never
// leaves a partially written value behind.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package objectstore
