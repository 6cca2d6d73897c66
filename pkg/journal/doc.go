// Package journal is the write-ahead log behind transactional queues.
//
// Every staged queue operation is logged under its transaction id before it
// becomes visible. Commit and rollback markers terminate a transaction; a
// prepare marker records that a two-phase transaction is in doubt. On open
// the log is scanned and only transactions without a terminal marker are
// kept, so a restarted queue manager can roll back what was in flight and
// hand prepared transactions back to the coordinator.
//
// Record layout, big endian:
//
//	[kind byte][txid 16 bytes][queue length uint16][queue][value length uint32][value]
//
// A record cut short by a crash ends the scan and is truncated away. Once no
// transaction is open and the file has grown past the truncation threshold,
// the file is emptied.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package journal
