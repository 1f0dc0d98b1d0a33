package httpd

import (
	"net/http"

	"github.com/rhuss/httpd/pkg/api"
)

// Login credentials and the token handed out in static mode.
const (
	DefaultUsername = "admin"
	DefaultPassword = "123456"
	DefaultToken    = "abcdefg"
)

// Login error codes.
const (
	CodeMissCredentials = 10001
	CodeUnknownUser     = 10002
	CodeWrongPassword   = 10003
)

// TokenIssuer hands out the token returned by a successful login.
type TokenIssuer interface {
	Issue(subject string, scopes ...string) (string, error)
}

// StaticToken issues the same token for everyone.
type StaticToken string

// Issue returns t.
func (t StaticToken) Issue(string, ...string) (string, error) {
	return string(t), nil
}

// Login checks username and password from the request body and replies
// with a token.
func (s *Service) Login(req *api.Request, resp *api.Response) int {
	username := req.GetString("username")
	password := req.GetString("password")
	switch {
	case username == "" || password == "":
		api.Status(resp, CodeMissCredentials, "Miss username or password")
		return http.StatusBadRequest
	case username != DefaultUsername:
		api.Status(resp, CodeUnknownUser, "Username not exist")
		return http.StatusBadRequest
	case password != DefaultPassword:
		api.Status(resp, CodeWrongPassword, "Password wrong")
		return http.StatusBadRequest
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		s.logger.Error("issuing token", "user", username, "error", err)
		return api.Fail(resp, api.NewServerError("issuing token failed"))
	}
	resp.Set("token", token)
	api.Status(resp, 0, "OK")
	return http.StatusOK
}
