// Package kv implements the persistent key/value store behind the
// declaration registry and the submission queue.
//
// Three implementations are provided:
//
//   - SQLiteStore: durable, backed by modernc.org/sqlite with goose
//     migrations; Update maps onto one SQL transaction.
//   - MemoryStore: process-local, used in tests and ephemeral sessions.
//   - SealedStore: wraps another Store and encrypts every value with
//     AES-GCM under a key derived from a device passphrase.
//
// Every storage failure is wrapped with common.ErrStorageFailure.
package kv
