// Package storage keeps downloaded media on the local filesystem and
// produces image thumbnails.
package storage
