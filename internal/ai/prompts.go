package ai

import (
	"strings"

	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// ConversationalPrompt is the system prompt for replies sent over WhatsApp.
const ConversationalPrompt = `You are a helpful AI assistant integrated with WhatsApp.
You help users with various tasks including:
- Answering questions
- Analyzing screenshots and images
- Helping with coding tasks
- Providing summaries and insights
- Assisting with productivity

Be concise and friendly. Keep responses short and to the point for WhatsApp.`

// TextExtractionPrompt asks the vision model to transcribe an image.
const TextExtractionPrompt = "Extract all text from this image. If there is no text, describe what you see."

// ImageClassificationPrompt asks the vision model for a single category name.
var ImageClassificationPrompt = "Classify this image into one of these categories: " +
	strings.Join(domain.Classifications, ", ") + ". Return only the category name."

const (
	summarySystemPrompt = "You are a helpful assistant that creates concise summaries."
	intentSystemPrompt  = "You are an intent classification system. Always respond with valid JSON."
)

func summaryRequest(transcript string) string {
	return "Please summarize the following conversation:\n\n" + transcript
}

func intentRequest(text string) string {
	return "Analyze this message and determine the user's intent. " +
		"Return as JSON with fields: intent (string), entities (array), confidence (number 0-1).\n\n" +
		"Message: " + text
}
