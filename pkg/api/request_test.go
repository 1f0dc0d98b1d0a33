package api

import (
	"context"
	"net/http"
	"testing"
)

func newTestRequest(contentType string, body string) *Request {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return NewRequest(context.Background(), "POST", "/test", header, []byte(body))
}

func TestNewRequestContentType(t *testing.T) {
	req := newTestRequest("Application/JSON; charset=utf-8", "{}")
	if req.ContentType != ApplicationJSON {
		t.Errorf("ContentType = %q, want %q", req.ContentType, ApplicationJSON)
	}
	if req.ContentTypeParam("charset") != "utf-8" {
		t.Errorf("charset = %q, want utf-8", req.ContentTypeParam("charset"))
	}

	bare := NewRequest(context.Background(), "GET", "/", nil, nil)
	if bare.Header == nil || bare.ContentType != "" {
		t.Errorf("bare request header = %v, content type = %q", bare.Header, bare.ContentType)
	}
}

func TestRequestTypedGetters(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", ApplicationJSON, `{"int":123,"float":3.14,"string":"hello","bool":true}`},
		{"kv", ApplicationURLEncoded, "int=123&float=3.14&string=hello&bool=true"},
		{"form", "multipart/form-data; boundary=B", "--B\r\n" +
			"Content-Disposition: form-data; name=\"int\"\r\n\r\n123\r\n--B\r\n" +
			"Content-Disposition: form-data; name=\"float\"\r\n\r\n3.14\r\n--B\r\n" +
			"Content-Disposition: form-data; name=\"string\"\r\n\r\nhello\r\n--B\r\n" +
			"Content-Disposition: form-data; name=\"bool\"\r\n\r\ntrue\r\n--B--\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestRequest(tt.contentType, tt.body)
			if err := req.ParseBody(); err != nil {
				t.Fatalf("ParseBody: %v", err)
			}
			if got := req.GetInt("int"); got != 123 {
				t.Errorf("GetInt = %d, want 123", got)
			}
			if got := req.GetFloat("float"); got != 3.14 {
				t.Errorf("GetFloat = %v, want 3.14", got)
			}
			if got := req.GetString("string"); got != "hello" {
				t.Errorf("GetString = %q, want hello", got)
			}
			if !req.GetBool("bool") {
				t.Error("GetBool = false, want true")
			}
			if !req.Get("missing").IsNull() {
				t.Error("missing field should be null")
			}
		})
	}
}

func TestRequestParseBodyOnce(t *testing.T) {
	req := newTestRequest(ApplicationJSON, `{broken`)
	first := req.ParseBody()
	if first == nil {
		t.Fatal("expected decode error")
	}
	if second := req.ParseBody(); second != first {
		t.Errorf("second ParseBody = %v, want first result %v", second, first)
	}
	if req.JSON() != nil {
		t.Error("failed decode left a JSON body")
	}
}

func TestRequestBodyAccessorsFollowContentType(t *testing.T) {
	req := newTestRequest(ApplicationURLEncoded, "a=1")
	if req.JSON() != nil || req.Form() != nil {
		t.Error("url-encoded request exposed a JSON or form body")
	}
	if req.KV().Get("a") != "1" {
		t.Errorf("KV a = %q, want 1", req.KV().Get("a"))
	}

	plain := newTestRequest(TextPlain, "a=1")
	if !plain.Get("a").IsNull() {
		t.Error("text/plain body should have no fields")
	}
}

func TestRequestGetParamAndHeader(t *testing.T) {
	req := newTestRequest("", "")
	req.Query.Add("t", "100")
	req.Query.Add("t", "200")
	req.Header.Set("X-Mode", "fast")

	if got := req.GetParam("t", ""); got != "100" {
		t.Errorf("GetParam(t) = %q, want first value 100", got)
	}
	if got := req.Query.All("t"); len(got) != 2 || got[1] != "200" {
		t.Errorf("All(t) = %v", got)
	}
	if got := req.GetParam("missing", "def"); got != "def" {
		t.Errorf("GetParam(missing) = %q, want def", got)
	}
	if got := req.GetHeader("x-mode", ""); got != "fast" {
		t.Errorf("GetHeader = %q, want fast", got)
	}
	if got := req.GetHeader("token", "none"); got != "none" {
		t.Errorf("GetHeader(token) = %q, want none", got)
	}
}

type ctxKey struct{}

func TestRequestWithContext(t *testing.T) {
	req := newTestRequest(ApplicationJSON, `{"a":1}`)
	req.Query.Add("q", "1")
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	r2 := req.WithContext(ctx)
	if r2.Context().Value(ctxKey{}) != "v" {
		t.Error("WithContext did not carry the context")
	}
	if r2.GetParam("q", "") != "1" || r2.GetInt("a") != 1 {
		t.Error("WithContext lost request data")
	}
}
