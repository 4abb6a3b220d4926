// Package ocr is a client for the OCR.space text extraction API.
package ocr
