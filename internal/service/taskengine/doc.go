// Package taskengine implements the task lifecycle and assignment engine:
// task creation, manual and automatic assignment under a load ceiling,
// reassignment, acceptance, finalization, cancellation, manager-to-manager
// delegation and the assignment ledger.
//
// Every mutating operation runs in a single store transaction. The task row
// is locked for update, assignments lock the candidate workers before their
// load is counted, and the write is guarded by the task's version. Events are
// emitted only after the transaction commits.
package taskengine
