// Package postgres provides PostgreSQL implementations of the store
// interfaces in internal/store and of task.TaskStore, together with the
// embedded goose migrations that create their schema.
//
// Stores accept a store.DBTX so they work against either a *sql.DB or a
// *sql.Tx, and translate driver errors into store errors with MapError.
package postgres
