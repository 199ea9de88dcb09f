// Package task runs asynchronous task processing.
//
// A Processor owns a bounded TaskQueue of task IDs and a WorkerPool that
// drains it. Each run loads the task, executes a fixed sequence of phases,
// and transitions the task to completed or failed through the lifecycle
// engine, notifying a sink of the outcome. Runs execute on the processor's
// own context, so they outlive the request that triggered them.
package task
