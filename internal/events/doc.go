// Package events provides task notification events and their delivery.
//
// The engine emits a TaskEvent after each committed mutation. Delivery is
// fire-and-forget: the Dispatcher queues events in a bounded buffer and a
// small worker pool hands them to registered handlers (for example the Redis
// publisher in internal/platform/redis). A full queue drops the event.
//
// The primary components are:
// - TaskEvent: a committed change to a task
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
// - Dispatcher: asynchronous EventEmitter with a bounded queue
package events
