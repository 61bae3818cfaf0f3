// Package domain contains the core business entities, value objects, and
// domain logic of the application: tasks and their lifecycle table, the
// delegation overlay, the assignment ledger and the error taxonomy. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
