package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BusinessAccountObject is the webhook object type carrying messages.
const BusinessAccountObject = "whatsapp_business_account"

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-Hub-Signature-256"

// Payload is the body of a webhook POST.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Status is a delivery receipt for an outbound message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Message is one inbound message. Exactly one of the typed fields is set,
// according to Type.
type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Image     *MediaRef `json:"image,omitempty"`
	Document  *MediaRef `json:"document,omitempty"`
	Audio     *MediaRef `json:"audio,omitempty"`
	Video     *MediaRef `json:"video,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// MediaRef points at media stored by WhatsApp.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

func (m *Message) media() *MediaRef {
	switch m.Type {
	case "image":
		return m.Image
	case "document":
		return m.Document
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	}
	return nil
}

// Content returns the text body, the media caption or, for documents
// without a caption, the filename.
func (m *Message) Content() string {
	if m.Type == "text" {
		if m.Text == nil {
			return ""
		}
		return m.Text.Body
	}
	ref := m.media()
	if ref == nil {
		return ""
	}
	if ref.Caption != "" {
		return ref.Caption
	}
	return ref.Filename
}

// MediaID returns the id of the attached media, or "".
func (m *Message) MediaID() string {
	if ref := m.media(); ref != nil {
		return ref.ID
	}
	return ""
}

// MediaMimeType returns the declared MIME type of the attached media.
func (m *Message) MediaMimeType() string {
	if ref := m.media(); ref != nil {
		return ref.MimeType
	}
	return ""
}

// VerifyWebhook checks a subscription request.
func VerifyWebhook(mode, token, verifyToken string) bool {
	return mode == "subscribe" && verifyToken != "" &&
		hmac.Equal([]byte(token), []byte(verifyToken))
}

// VerifySignature checks the X-Hub-Signature-256 header against body. With
// an empty secret every request is accepted.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}
