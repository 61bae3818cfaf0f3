package domain

import (
	"testing"
)

func TestNextState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from  TaskState
		event Event
		want  TaskState
		ok    bool
	}{
		{TaskStatePending, EventAssign, TaskStateAssigned, true},
		{TaskStatePending, EventAccept, "", false},
		{TaskStatePending, EventFinalize, "", false},
		{TaskStatePending, EventCancel, TaskStateCancelled, true},
		{TaskStatePending, EventReassign, TaskStatePending, true},
		{TaskStateAssigned, EventAssign, "", false},
		{TaskStateAssigned, EventAccept, TaskStateAccepted, true},
		{TaskStateAssigned, EventCancel, TaskStateCancelled, true},
		{TaskStateAssigned, EventReassign, TaskStatePending, true},
		{TaskStateAssigned, EventDelegate, TaskStateAssigned, true},
		{TaskStatePending, EventDelegate, TaskStatePending, true},
		{TaskStateAccepted, EventFinalize, TaskStateFinalized, true},
		{TaskStateAccepted, EventCancel, "", false},
		{TaskStateAccepted, EventReassign, TaskStatePending, true},
		{TaskStateAccepted, EventResolveDelegation, TaskStateAccepted, true},
		{TaskStateFinalized, EventReassign, "", false},
		{TaskStateFinalized, EventDelegate, "", false},
		{TaskStateFinalized, EventUpdate, "", false},
		{TaskStateCancelled, EventAssign, "", false},
		{TaskStateCancelled, EventCancel, "", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			got, ok := NextState(tc.from, tc.event)
			if ok != tc.ok {
				t.Fatalf("NextState(%s, %s) ok = %v, want %v", tc.from, tc.event, ok, tc.ok)
			}
			if got != tc.want {
				t.Errorf("NextState(%s, %s) = %q, want %q", tc.from, tc.event, got, tc.want)
			}
		})
	}
}

func TestTerminalStatesAcceptNoEvents(t *testing.T) {
	t.Parallel()

	events := []Event{
		EventAssign, EventAccept, EventFinalize, EventCancel,
		EventReassign, EventDelegate, EventResolveDelegation, EventUpdate,
	}
	for _, state := range []TaskState{TaskStateFinalized, TaskStateCancelled} {
		if !state.IsTerminal() {
			t.Errorf("expected %s to be terminal", state)
		}
		for _, e := range events {
			if CanApply(state, e) {
				t.Errorf("expected %s to be illegal in terminal state %s", e, state)
			}
		}
	}
}
