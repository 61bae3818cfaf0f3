// Package memory provides in-process implementations of the store
// interfaces. Transactions are fully serialized and roll back by restoring a
// snapshot, which gives the same all-or-nothing behavior as the Postgres
// stores without a database.
package memory
