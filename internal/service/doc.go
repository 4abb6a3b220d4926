// Package service contains the application use cases of the assistant. It
// orchestrates the stores defined in internal/store, the AI service and the
// platform clients to process WhatsApp traffic, manage users and sessions,
// and run the handlers of the background queues.
//
// External systems are reached through the small interfaces in ports.go, so
// services depend on behaviour rather than on concrete clients. Work that
// should not block a request is handed to the task runner by emitting an
// events.TaskRequestEvent.
//
// Error handling:
//   - Expected conditions are reported with the sentinel errors in errors.go
//     or the store's not-found and duplicate errors.
//   - Everything else is wrapped with context and mapped to a generic error
//     by the API layer.
package service
