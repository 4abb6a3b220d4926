// Package ai holds the assistant's conversational logic: prompt
// construction, conversation context, summaries and intent extraction.
//
// The package talks to language models only through the Provider interface.
// Concrete providers live under internal/platform (openai, gemini) and are
// selected at startup from configuration.
package ai
