package gemini

import "errors"

var (
	// ErrContentBlocked is returned when the response was stopped by safety filters.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrNoCandidates is returned when the API generated nothing.
	ErrNoCandidates = errors.New("gemini returned no candidates")

	// ErrInvalidImageURL is returned for image URLs that cannot be loaded.
	ErrInvalidImageURL = errors.New("invalid image url")
)
