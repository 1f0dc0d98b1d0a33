package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/rhuss/httpd/pkg/api"
)

func staticChain(token string) *AuthChain {
	return &AuthChain{
		Authenticators: []Authenticator{authnFunc(func(req *api.Request) AuthResult {
			switch TokenFromRequest(req) {
			case "":
				return AuthResult{Decision: Abstain}
			case token:
				return AuthResult{Decision: Yes, Identity: &Identity{Subject: "admin"}}
			default:
				return AuthResult{Decision: No, Err: ErrTokenWrong}
			}
		})},
		DefaultDecision: No,
	}
}

type authnFunc func(req *api.Request) AuthResult

func (f authnFunc) Authenticate(_ context.Context, req *api.Request) AuthResult { return f(req) }

func TestRequire(t *testing.T) {
	guard := Require(staticChain("abcdefg"), DefaultBypassEndpoints)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCode   int64
		wantMsg    string
	}{
		{"bypass login", "/login", "", 0, 0, ""},
		{"valid token", "/query", "abcdefg", 0, 0, ""},
		{"missing token", "/query", "", http.StatusUnauthorized, CodeMissToken, "Miss token"},
		{"wrong token", "/query", "zzz", http.StatusUnauthorized, CodeTokenWrong, "Token wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.token != "" {
				h.Set(TokenHeader, tt.token)
			}
			resp := api.NewResponse()
			status := guard(newRequest(tt.path, h), resp)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantStatus == 0 {
				if resp.Populated() {
					t.Error("accepted request wrote an envelope")
				}
				return
			}
			if got := resp.Get("code").Int(); got != tt.wantCode {
				t.Errorf("code = %d, want %d", got, tt.wantCode)
			}
			if got := resp.Get("message").String(); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestRequireNilChainAllows(t *testing.T) {
	if status := Require(nil, nil)(newRequest("/query", nil), api.NewResponse()); status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRateLimit(t *testing.T) {
	guard := RateLimit(NewClientLimiter(0.001, 2))

	req := newRequest("/ping", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	for i := 0; i < 2; i++ {
		if status := guard(req, api.NewResponse()); status != 0 {
			t.Fatalf("request %d: status = %d, want 0", i+1, status)
		}
	}

	resp := api.NewResponse()
	if status := guard(req, resp); status != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", status)
	}
	if resp.Get("code").Int() != CodeTooManyRequests {
		t.Errorf("code = %v, want %d", resp.Get("code"), CodeTooManyRequests)
	}

	other := newRequest("/ping", nil)
	other.RemoteAddr = "10.0.0.2:4000"
	if status := guard(other, api.NewResponse()); status != 0 {
		t.Errorf("other client: status = %d, want 0", status)
	}
}

func TestRateLimitNilLimiter(t *testing.T) {
	guard := RateLimit(nil)
	for i := 0; i < 100; i++ {
		if status := guard(newRequest("/ping", nil), api.NewResponse()); status != 0 {
			t.Fatalf("request %d: status = %d, want 0", i+1, status)
		}
	}
}

func TestClientLimiterUnlimited(t *testing.T) {
	l := NewClientLimiter(0, 0)
	for i := 0; i < 10; i++ {
		if err := l.Allow(context.Background(), "c"); err != nil {
			t.Fatalf("Allow() = %v, want nil", err)
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for an unlimited limiter", l.Len())
	}
}
