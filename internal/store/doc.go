// Package store defines the persistence contracts of the execution engine:
// execution and stats stores, the read-only catalog, the DBTX abstraction and
// the transaction helper every orchestrator operation runs inside.
package store
