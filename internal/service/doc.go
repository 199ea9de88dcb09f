// Package service contains the task lifecycle engine.
//
// TaskService validates writes, runs every mutation in its own short
// transaction and couples status changes to their audit log: a task row and
// the log entry describing its new status commit together or not at all.
// It also starts asynchronous processing by emitting an event that the
// processor subscribes to, so the service never depends on the processor.
//
// The service depends on domain entities and the store interfaces only.
package service
