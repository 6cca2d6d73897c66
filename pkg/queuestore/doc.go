// Package queuestore implements the storage behind a single named queue.
//
// Every Store keeps items in FIFO order with PutLast and lets PutFirst push
// an item back to the head. Stores are safe for concurrent use but do not
// block: capacity and waiting are the queue manager's job.
//
// Implementations:
//
//   - MemoryStore: a slice, nothing survives the process.
//   - FileStore: an append-only file of [flag][int32 length][payload]
//     records. Removing an item flips its flag to a tombstone in place; the
//     live order is rebuilt by scanning the file on open, and a truncated
//     trailing record is cut off as if it had never been written.
//   - DualFileStore: two FileStores, <queue>-1 and <queue>-2, under
//     <dir>/queuestore. Writes move to the other file once the write file
//     grows past MaxFileSize and the other file is empty; a drained read
//     file is cleared and reads move to the write file.
//   - StrategyStore: adapts an objectstore.Strategy, one record per item.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package queuestore
