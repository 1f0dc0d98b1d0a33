// Package api defines the message model shared by the transport core and
// the example services: requests, responses, dynamically typed body values,
// content types, and the standard response envelope.
//
// The package performs no network I/O and depends only on the Go standard
// library. Bodies are decoded and encoded here so that every transport
// adapter sees the same representation.
//
// Core types:
//   - [Request]: parsed request, immutable once its body has been decoded
//   - [Response]: mutable accumulator serialized by [Response.DumpBody]
//   - [Value]: tagged union with lenient coercion to bool/int/float/string
//   - [Object], [KV], [Form]: the three structured body representations
//   - [APIError]: client-facing failure carrying an envelope code and message
//
// Envelope:
//
// Every JSON, url-encoded, or multipart reply produced by the pipeline
// carries a "code" and a "message" field next to whatever fields the handler
// set. [Status] writes both in one call.
package api
