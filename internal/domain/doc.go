// Package domain defines the core entities of the assistant (users,
// conversation sessions, messages, media and generated artifacts) together
// with their validation rules and sentinel errors.
package domain
