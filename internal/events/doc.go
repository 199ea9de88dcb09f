// Package events decouples the components that request background work from
// the components that perform it.
//
// The lifecycle service emits a TaskRequestEvent when a task should be
// processed; the processor registers an EventHandler that submits the task.
// Neither side imports the other.
package events
