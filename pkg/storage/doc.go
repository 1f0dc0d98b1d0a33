// Package storage defines the upload store used by the example services and
// the helpers shared by its backends.
//
// Backends live in subpackages: fs (files under the document root, the
// default), memory (bounded LRU), postgres (pgx) and pebble (embedded KV).
package storage
