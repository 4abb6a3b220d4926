// Package events decouples services from the background task runner. A
// service emits a TaskRequestEvent naming a queue and task type; registered
// handlers, typically the task runner bridge, turn it into queued work.
package events
