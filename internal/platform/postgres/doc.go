// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces (repositories) defined in the internal/store package.
// It handles the details of database connections, query execution, and data
// mapping between domain entities and database records.
//
// The schema is embedded and applied with goose (see Migrate). Task mutations
// rely on SELECT ... FOR UPDATE, transaction-scoped advisory locks per worker
// and an optimistic version column.
package postgres
