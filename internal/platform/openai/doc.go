// Package openai implements ai.Provider on top of the OpenAI chat
// completions API, including vision requests for image analysis.
package openai
