// Package gemini implements ai.Provider using Google's Gemini API.
//
// It is the alternate provider to OpenAI, selected with ai.provider=gemini.
// Chat history is mapped onto Gemini's user/model roles, with system
// messages folded into the request's system instruction. Images are always
// sent inline: data: URLs are decoded locally and http(s) URLs are fetched
// before the request is made.
//
// Transient API failures (5xx and 429) are retried with exponential backoff.
// Responses blocked by safety filters surface as ErrContentBlocked and are
// not retried.
package gemini
