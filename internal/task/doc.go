// Package task runs background jobs on named, database-backed queues.
//
// Each queue has a QueuePolicy (attempts, exponential backoff, timeout and
// worker count) and a Handler. Tasks are persisted before they are queued, so
// pending, delayed and interrupted work is recovered after a restart, and
// their status and per-queue statistics can be queried while they run.
package task
