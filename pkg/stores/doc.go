// Package stores provides the persistence layer for update-manager: a
// SQLite-backed journal of update runs with WAL mode and embedded schema
// migrations. The journal is observational history only: it is never
// consulted to decide or resume a transaction, and journal failures never
// affect an update's outcome.
package stores
