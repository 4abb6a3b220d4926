// Package store defines the persistence interfaces for users, sessions,
// messages, media and artifacts, plus the sentinel errors and transaction
// helper shared by every implementation. The postgres implementations live
// in internal/platform/postgres.
package store
