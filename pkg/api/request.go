package api

import (
	"context"
	"net/http"
	"sync"
)

// Param is one query or path parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered multimap of parameters. Keys may repeat.
type Params []Param

// Get returns the first value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// All returns every value for key in order.
func (p Params) All(key string) []string {
	var out []string
	for _, kv := range p {
		if kv.Key == key {
			out = append(out, kv.Value)
		}
	}
	return out
}

// Add appends a parameter.
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Request is a parsed request. Transport adapters build it once; after
// ParseBody has run it must be treated as read-only.
type Request struct {
	Method string
	Path   string

	// Query holds query parameters in wire order followed by path
	// parameters captured by the router.
	Query Params

	Header http.Header

	// ContentType is the bare declared media type, e.g. "application/json".
	ContentType string

	Body       []byte
	RemoteAddr string

	ctx      context.Context
	ctParams map[string]string

	parseOnce sync.Once
	parseErr  error
	json      Object
	kv        KV
	form      Form
}

// NewRequest builds a Request and derives ContentType from the header.
func NewRequest(ctx context.Context, method, path string, header http.Header, body []byte) *Request {
	if header == nil {
		header = make(http.Header)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ct, params := ParseContentType(header.Get("Content-Type"))
	return &Request{
		Method:      method,
		Path:        path,
		Header:      header,
		ContentType: ct,
		Body:        body,
		ctx:         ctx,
		ctParams:    params,
	}
}

// Context returns the request context. It is cancelled by the transport
// when the peer goes away.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r carrying ctx. The body must not
// have been parsed yet.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := &Request{
		Method:      r.Method,
		Path:        r.Path,
		Query:       r.Query,
		Header:      r.Header,
		ContentType: r.ContentType,
		Body:        r.Body,
		RemoteAddr:  r.RemoteAddr,
		ctx:         ctx,
		ctParams:    r.ctParams,
	}
	return r2
}

// ContentTypeParam returns a parameter of the declared Content-Type header,
// such as "boundary" or "charset".
func (r *Request) ContentTypeParam(name string) string {
	return r.ctParams[name]
}

// ParseBody decodes the raw body according to the declared content type.
// It runs once; later calls return the first result. On failure the decoded
// body stays empty.
func (r *Request) ParseBody() error {
	r.parseOnce.Do(func() {
		switch r.ContentType {
		case ApplicationJSON:
			r.json, r.parseErr = DecodeJSON(r.Body)
		case ApplicationURLEncoded:
			r.kv, r.parseErr = DecodeKV(r.Body)
		case MultipartFormData:
			if len(r.Body) > 0 {
				r.form, r.parseErr = DecodeForm(r.Body, r.ctParams["boundary"])
			}
		}
	})
	return r.parseErr
}

// JSON returns the decoded JSON object, or nil when the body is not JSON.
func (r *Request) JSON() Object {
	_ = r.ParseBody()
	return r.json
}

// KV returns the decoded url-encoded body, or nil when the body is not
// url-encoded.
func (r *Request) KV() KV {
	_ = r.ParseBody()
	return r.kv
}

// Form returns the decoded multipart body, or nil when the body is not
// multipart.
func (r *Request) Form() Form {
	_ = r.ParseBody()
	return r.form
}

// GetParam returns the first query or path parameter called key, or def.
func (r *Request) GetParam(key, def string) string {
	if v, ok := r.Query.Get(key); ok {
		return v
	}
	return def
}

// GetHeader returns the header value for key, or def when it is absent.
func (r *Request) GetHeader(key, def string) string {
	if v := r.Header.Get(key); v != "" {
		return v
	}
	return def
}

// Get looks key up in the decoded body of the declared content type. It
// returns null when the field is absent or the content type carries no
// structured body.
func (r *Request) Get(key string) Value {
	_ = r.ParseBody()
	switch r.ContentType {
	case ApplicationJSON:
		return r.json.Get(key)
	case ApplicationURLEncoded:
		if v, ok := r.kv[key]; ok {
			return StringValue(v)
		}
	case MultipartFormData:
		if f, ok := r.form.Get(key); ok {
			return StringValue(string(f.Content))
		}
	}
	return Value{}
}

// GetBool returns the body field key coerced to bool.
func (r *Request) GetBool(key string) bool { return r.Get(key).Bool() }

// GetInt returns the body field key coerced to int64.
func (r *Request) GetInt(key string) int64 { return r.Get(key).Int() }

// GetFloat returns the body field key coerced to float64.
func (r *Request) GetFloat(key string) float64 { return r.Get(key).Float() }

// GetString returns the body field key coerced to string.
func (r *Request) GetString(key string) string { return r.Get(key).String() }
