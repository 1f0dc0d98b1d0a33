package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// representation records which body form of a Response was written last.
type representation int

const (
	reprNone representation = iota
	reprJSON
	reprKV
	reprForm
	reprRaw
)

// Response accumulates status, headers and body for one exchange.
//
// A Response holds up to four body representations. DumpBody serializes the
// one that was populated most recently and aligns ContentType with it.
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header

	// Body holds the serialized body after DumpBody, or raw bytes set
	// through SetBody.
	Body []byte

	json     Object
	kv       KV
	form     Form
	last     representation
	boundary string
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
	}
}

// Set stores one field in the structured representation selected by the
// content type. An empty or unstructured content type selects JSON.
func (r *Response) Set(key string, value any) {
	v := ValueOf(value)
	switch r.ContentType {
	case ApplicationURLEncoded:
		if r.kv == nil {
			r.kv = make(KV)
		}
		r.kv[key] = v.String()
		r.last = reprKV
	case MultipartFormData:
		r.form.Set(key, v.String())
		r.last = reprForm
	default:
		r.ContentType = ApplicationJSON
		if r.json == nil {
			r.json = make(Object)
		}
		r.json[key] = v
		r.last = reprJSON
	}
}

// Get returns a field of the active structured representation.
func (r *Response) Get(key string) Value {
	switch r.last {
	case reprJSON:
		return r.json.Get(key)
	case reprKV:
		if v, ok := r.kv[key]; ok {
			return StringValue(v)
		}
	case reprForm:
		if f, ok := r.form.Get(key); ok {
			return StringValue(string(f.Content))
		}
	}
	return Value{}
}

// Has reports whether the active structured representation holds key.
func (r *Response) Has(key string) bool {
	switch r.last {
	case reprJSON:
		return r.json.Has(key)
	case reprKV:
		return r.kv.Has(key)
	case reprForm:
		return r.form.Has(key)
	default:
		return false
	}
}

// Structured reports whether the last populated representation is a JSON
// object, key-value mapping or form.
func (r *Response) Structured() bool {
	return r.last == reprJSON || r.last == reprKV || r.last == reprForm
}

// Populated reports whether any body representation was written.
func (r *Response) Populated() bool {
	return r.last != reprNone
}

// SetJSON replaces the JSON representation with a copy of o.
func (r *Response) SetJSON(o Object) {
	r.json = make(Object, len(o))
	for k, v := range o {
		r.json[k] = v
	}
	r.ContentType = ApplicationJSON
	r.last = reprJSON
}

// SetKV replaces the url-encoded representation with a copy of kv.
func (r *Response) SetKV(kv KV) {
	r.kv = make(KV, len(kv))
	for k, v := range kv {
		r.kv[k] = v
	}
	r.ContentType = ApplicationURLEncoded
	r.last = reprKV
}

// SetForm replaces the multipart representation with a copy of form.
func (r *Response) SetForm(form Form) {
	r.form = form.Clone()
	if r.form == nil {
		r.form = Form{}
	}
	r.ContentType = MultipartFormData
	r.last = reprForm
}

// SetBody replaces the body with raw bytes of the given content type.
func (r *Response) SetBody(contentType string, body []byte) {
	r.Body = body
	r.ContentType = contentType
	r.last = reprRaw
}

// JSON returns the JSON representation.
func (r *Response) JSON() Object { return r.json }

// KV returns the url-encoded representation.
func (r *Response) KV() KV { return r.kv }

// Form returns the multipart representation.
func (r *Response) Form() Form { return r.form }

// DumpBody serializes the last populated representation into Body and
// aligns ContentType with it. It is a no-op when nothing structured was
// written.
func (r *Response) DumpBody() error {
	switch r.last {
	case reprJSON:
		b, err := EncodeJSON(r.json)
		if err != nil {
			return err
		}
		r.Body = b
		r.ContentType = ApplicationJSON
	case reprKV:
		r.Body = EncodeKV(r.kv)
		r.ContentType = ApplicationURLEncoded
	case reprForm:
		if r.boundary == "" {
			r.boundary = newBoundary()
		}
		b, err := EncodeForm(r.form, r.boundary)
		if err != nil {
			return err
		}
		r.Body = b
		r.ContentType = MultipartFormData
	}
	return nil
}

// ContentTypeHeader returns the Content-Type header value, including the
// multipart boundary once the body has been dumped.
func (r *Response) ContentTypeHeader() string {
	if r.ContentType == MultipartFormData && r.boundary != "" {
		return r.ContentType + "; boundary=" + r.boundary
	}
	return r.ContentType
}

// Reset clears every body representation. Status and headers are kept.
func (r *Response) Reset() {
	r.json, r.kv, r.form, r.Body = nil, nil, nil, nil
	r.last = reprNone
}

func newBoundary() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
