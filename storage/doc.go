// Package storage implements the durable local record store for nyxcore.
//
// Storage is backed by a single SQLite database file opened in WAL mode, the
// way Klingon-tech's node storage layer opens its database
// ("?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"). Each
// operation holds a sync.RWMutex (shared for reads, exclusive for writes)
// for its whole duration, and db.SetMaxOpenConns(1) gives the package a
// single connection, so reads as well as writes run one at a time.
//
// Schema migrations are plain numbered SQL files under migrations/, embedded
// into the binary and applied in order inside a schema_version table at
// Open(). Corruption is never silently repaired: a migration or integrity
// failure is returned as ErrStorageUnavailable / ErrStorageError and the
// host is expected to re-initialize the data directory.
package storage
