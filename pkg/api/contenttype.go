package api

import (
	"mime"
	"strings"
)

// Content types understood by the body codecs and the example services.
const (
	ApplicationJSON        = "application/json"
	ApplicationURLEncoded  = "application/x-www-form-urlencoded"
	MultipartFormData      = "multipart/form-data"
	ApplicationGRPC        = "application/grpc"
	ApplicationOctetStream = "application/octet-stream"
	TextPlain              = "text/plain"
	TextHTML               = "text/html"
)

// suffixTypes maps file name suffixes (without the dot) to content types.
var suffixTypes = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"csv":  "text/csv",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"xml":  "text/xml",
	"js":   "application/javascript",
	"json": "application/json",
	"pdf":  "application/pdf",
	"zip":  "application/zip",
	"gz":   "application/gzip",
	"tar":  "application/x-tar",
	"wasm": "application/wasm",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"flv":  "video/x-flv",
	"ttf":  "font/ttf",
	"woff": "font/woff",
}

// ContentTypeBySuffix returns the content type for a file name suffix such as
// "jpg" or ".jpg". It returns "" when the suffix is unknown.
func ContentTypeBySuffix(suffix string) string {
	suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
	return suffixTypes[suffix]
}

// ParseContentType splits a Content-Type header value into its bare,
// lower-cased media type and its parameters. A malformed header yields the
// text before the first ';' and no parameters.
func ParseContentType(header string) (string, map[string]string) {
	if header == "" {
		return "", nil
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType, _, _ = strings.Cut(header, ";")
		return strings.ToLower(strings.TrimSpace(mediaType)), nil
	}
	return mediaType, params
}

// IsStructured reports whether ct is one of the three structured body
// representations (JSON object, url-encoded key-value, multipart form).
func IsStructured(ct string) bool {
	switch ct {
	case ApplicationJSON, ApplicationURLEncoded, MultipartFormData:
		return true
	default:
		return false
	}
}

// BodyAllowed reports whether a response with the given status may carry a
// body.
func BodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == 204, status == 304:
		return false
	default:
		return true
	}
}
