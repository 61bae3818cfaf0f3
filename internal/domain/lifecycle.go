package domain

// TaskState is a position in the task lifecycle.
type TaskState string

// Lifecycle states. Finalized and Cancelled are terminal.
const (
	TaskStatePending   TaskState = "pending"
	TaskStateAssigned  TaskState = "assigned"
	TaskStateAccepted  TaskState = "accepted"
	TaskStateFinalized TaskState = "finalized"
	TaskStateCancelled TaskState = "cancelled"
)

// Valid reports whether s is a known state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateAssigned, TaskStateAccepted,
		TaskStateFinalized, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further events are accepted in s.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateFinalized || s == TaskStateCancelled
}

// IsActive reports whether a task in s counts against its worker's load.
func (s TaskState) IsActive() bool {
	return s == TaskStateAssigned || s == TaskStateAccepted
}

// Event is something that happens to a task.
type Event string

// Lifecycle events.
const (
	EventAssign            Event = "assign"
	EventAccept            Event = "accept"
	EventFinalize          Event = "finalize"
	EventCancel            Event = "cancel"
	EventReassign          Event = "reassign"
	EventDelegate          Event = "delegate"
	EventResolveDelegation Event = "resolve_delegation"
	EventUpdate            Event = "update"
)

type transitionKey struct {
	from  TaskState
	event Event
}

// transitions is the complete lifecycle table. A (state, event) pair that is
// absent is illegal. Delegation and update events leave the state unchanged.
var transitions = map[transitionKey]TaskState{
	{TaskStatePending, EventAssign}:            TaskStateAssigned,
	{TaskStatePending, EventCancel}:            TaskStateCancelled,
	{TaskStatePending, EventReassign}:          TaskStatePending,
	{TaskStatePending, EventDelegate}:          TaskStatePending,
	{TaskStatePending, EventResolveDelegation}: TaskStatePending,
	{TaskStatePending, EventUpdate}:            TaskStatePending,

	{TaskStateAssigned, EventAccept}:            TaskStateAccepted,
	{TaskStateAssigned, EventCancel}:            TaskStateCancelled,
	{TaskStateAssigned, EventReassign}:          TaskStatePending,
	{TaskStateAssigned, EventDelegate}:          TaskStateAssigned,
	{TaskStateAssigned, EventResolveDelegation}: TaskStateAssigned,
	{TaskStateAssigned, EventUpdate}:            TaskStateAssigned,

	{TaskStateAccepted, EventFinalize}:          TaskStateFinalized,
	{TaskStateAccepted, EventReassign}:          TaskStatePending,
	{TaskStateAccepted, EventDelegate}:          TaskStateAccepted,
	{TaskStateAccepted, EventResolveDelegation}: TaskStateAccepted,
	{TaskStateAccepted, EventUpdate}:            TaskStateAccepted,
}

// NextState returns the state reached by applying event in state from.
// The boolean is false when the transition is illegal.
func NextState(from TaskState, event Event) (TaskState, bool) {
	to, ok := transitions[transitionKey{from: from, event: event}]
	return to, ok
}

// CanApply reports whether event is legal in state from.
func CanApply(from TaskState, event Event) bool {
	_, ok := NextState(from, event)
	return ok
}
