// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Implementations live in internal/platform/postgres and
// internal/platform/memory. Multi-step mutations go through a Transactor so
// that the task row, its capabilities and its ledger entries change together.
package store
