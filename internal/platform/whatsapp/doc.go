// Package whatsapp is a client for the WhatsApp Business Cloud API and the
// types of the webhook payloads it delivers.
package whatsapp
