// Package api serves the assistant's HTTP surface: the WhatsApp webhook,
// authentication, sessions, outbound messages and job inspection. Handlers
// validate input, call the services and map their errors onto JSON
// responses.
package api
