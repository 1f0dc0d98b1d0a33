package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
)

// KV is a decoded url-encoded body. When a key repeats, the last value wins.
type KV map[string]string

// Get returns the value for key, or "" when absent.
func (kv KV) Get(key string) string {
	if kv == nil {
		return ""
	}
	return kv[key]
}

// Has reports whether key is present.
func (kv KV) Has(key string) bool {
	_, ok := kv[key]
	return ok
}

// FormField is one part of a multipart body.
type FormField struct {
	Name        string
	Filename    string
	ContentType string
	Content     []byte
}

// Form is a decoded multipart body, kept in wire order.
type Form []FormField

// Get returns the first field called name.
func (f Form) Get(name string) (FormField, bool) {
	for _, field := range f {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}

// Value returns the content of the first field called name as a string.
func (f Form) Value(name string) string {
	field, _ := f.Get(name)
	return string(field.Content)
}

// Has reports whether a field called name exists.
func (f Form) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Set replaces the content of the first field called name, or appends a new
// plain field.
func (f *Form) Set(name, value string) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Content = []byte(value)
			(*f)[i].Filename = ""
			return
		}
	}
	*f = append(*f, FormField{Name: name, Content: []byte(value)})
}

// Clone returns a deep copy of f.
func (f Form) Clone() Form {
	if f == nil {
		return nil
	}
	out := make(Form, len(f))
	for i, field := range f {
		field.Content = append([]byte(nil), field.Content...)
		out[i] = field
	}
	return out
}

// ErrBodyShape is returned when a JSON body is valid JSON but not an object.
var ErrBodyShape = errors.New("json body is not an object")

// DecodeJSON decodes a JSON object body. An empty body yields an empty
// object.
func DecodeJSON(body []byte) (Object, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Object{}, nil
	}
	var v Value
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decoding json body: %w", err)
	}
	if v.Kind() != KindObject {
		return nil, ErrBodyShape
	}
	if v.Object() == nil {
		return Object{}, nil
	}
	return v.Object(), nil
}

// EncodeJSON serializes o as a JSON object. A nil object encodes as {}.
func EncodeJSON(o Object) ([]byte, error) {
	return ObjectValue(o).MarshalJSON()
}

// DecodeKV decodes an application/x-www-form-urlencoded body.
func DecodeKV(body []byte) (KV, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decoding url-encoded body: %w", err)
	}
	kv := make(KV, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			kv[k] = vs[len(vs)-1]
		}
	}
	return kv, nil
}

// EncodeKV serializes kv with keys in sorted order.
func EncodeKV(kv KV) []byte {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(k))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(kv[k]))
	}
	return buf.Bytes()
}

// DecodeForm decodes a multipart/form-data body delimited by boundary.
func DecodeForm(body []byte, boundary string) (Form, error) {
	if boundary == "" {
		return nil, errors.New("decoding multipart body: missing boundary")
	}
	r := multipart.NewReader(bytes.NewReader(body), boundary)
	var form Form
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding multipart body: %w", err)
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("reading multipart field %q: %w", part.FormName(), err)
		}
		form = append(form, FormField{
			Name:        part.FormName(),
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return form, nil
}

// EncodeForm serializes form as multipart/form-data using boundary.
func EncodeForm(form Form, boundary string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("encoding multipart body: %w", err)
	}
	for _, field := range form {
		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(field.Name))
		if field.Filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, escapeQuotes(field.Filename))
		}
		h.Set("Content-Disposition", disposition)
		if field.ContentType != "" {
			h.Set("Content-Type", field.ContentType)
		}
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("encoding multipart field %q: %w", field.Name, err)
		}
		if _, err := pw.Write(field.Content); err != nil {
			return nil, fmt.Errorf("encoding multipart field %q: %w", field.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("encoding multipart body: %w", err)
	}
	return buf.Bytes(), nil
}

func escapeQuotes(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
