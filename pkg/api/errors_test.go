package api

import (
	"net/http"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	err := NewUnauthorizedError(10011, "Miss token")
	if got, want := err.Error(), "unauthorized: Miss token (code: 10011)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantType   ErrorType
		wantCode   int
		wantStatus int
	}{
		{"client input", NewClientInputError(10001, "Miss username"), ErrorTypeClientInput, 10001, http.StatusBadRequest},
		{"not found", NewNotFoundError("no route"), ErrorTypeNotFound, http.StatusNotFound, http.StatusNotFound},
		{"unauthorized", NewUnauthorizedError(10012, "Token wrong"), ErrorTypeUnauthorized, 10012, http.StatusUnauthorized},
		{"too many requests", NewTooManyRequestsError(10013, "slow down"), ErrorTypeTooManyRequests, 10013, http.StatusTooManyRequests},
		{"server error", NewServerError("boom"), ErrorTypeServerError, http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestUnknownErrorTypeIsServerError(t *testing.T) {
	err := &APIError{Type: "bogus"}
	if got := err.HTTPStatus(); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d, want 500", got)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "OK"},
		{200, "OK"},
		{404, "Not Found"},
		{599, "Unknown"},
		{10001, "Unknown"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.code); got != tt.want {
			t.Errorf("StatusText(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStatusWritesEnvelope(t *testing.T) {
	resp := NewResponse()
	if got := Status(resp, 400, ""); got != 400 {
		t.Errorf("Status returned %d, want 400", got)
	}
	if resp.Get("code").Int() != 400 {
		t.Errorf("code = %v, want 400", resp.Get("code"))
	}
	if resp.Get("message").String() != "Bad Request" {
		t.Errorf("message = %q, want default reason phrase", resp.Get("message").String())
	}

	Status(resp, 0, "done")
	if resp.Get("message").String() != "done" {
		t.Errorf("message = %q, want done", resp.Get("message").String())
	}
}

func TestFail(t *testing.T) {
	resp := NewResponse()
	status := Fail(resp, NewClientInputError(10002, "Miss password"))
	if status != http.StatusBadRequest {
		t.Errorf("Fail returned %d, want 400", status)
	}
	if resp.Get("code").Int() != 10002 || resp.Get("message").String() != "Miss password" {
		t.Errorf("envelope = %v/%v", resp.Get("code"), resp.Get("message"))
	}
}
