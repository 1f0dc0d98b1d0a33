package httpd

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/transport"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// maxDelay bounds t so the millisecond conversion cannot overflow.
const maxDelay = 24 * time.Hour

// delayParam reads the t query parameter as milliseconds from its leading
// digits, so "50ms" means 50. Values without leading digits yield zero.
func delayParam(req *api.Request) time.Duration {
	s := strings.TrimLeft(req.GetParam("t", ""), " \t")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	ms, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil && end == 0 {
		return 0
	}
	d := time.Duration(ms) * time.Millisecond
	if err != nil || ms > int64(maxDelay/time.Millisecond) {
		d = maxDelay
	}
	if neg {
		return -d
	}
	return d
}

// Ping answers "pong".
func Ping(_ *api.Request, resp *api.Response) int {
	resp.SetBody(api.TextPlain, []byte("pong"))
	return http.StatusOK
}

// Sleep blocks its loop for t milliseconds before answering. It stops
// early when the peer goes away.
func Sleep(req *api.Request, resp *api.Response) int {
	resp.Set("start_ms", nowMillis())
	if d := delayParam(req); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-req.Context().Done():
			timer.Stop()
		}
	}
	resp.Set("end_ms", nowMillis())
	api.Status(resp, 0, "OK")
	return http.StatusOK
}

// SetTimeout answers from a timer after t milliseconds. Without a positive
// t no timer is scheduled and the exchange ends with an empty body.
func SetTimeout(c *transport.Context) int {
	resp := c.Response()
	resp.Set("start_ms", nowMillis())
	c.SetTimeout(delayParam(c.Request()), func(w *transport.Writer) {
		if w.Begin() != nil {
			return
		}
		resp.Set("end_ms", nowMillis())
		api.Status(resp, 0, "OK")
		w.End()
	})
	return transport.Pending
}

// Query echoes every query and path parameter. A repeated key keeps its
// last value.
func Query(req *api.Request, resp *api.Response) int {
	for _, p := range req.Query {
		resp.Set(p.Key, p.Value)
	}
	api.Status(resp, 0, "OK")
	return http.StatusOK
}

// echoFields are appended to every echoed body.
func echoFields(resp *api.Response) {
	resp.Set("int", 123)
	resp.Set("float", 3.14)
	resp.Set("string", "hello")
}

// KV echoes a url-encoded body.
func KV(req *api.Request, resp *api.Response) int {
	if req.ContentType != api.ApplicationURLEncoded {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	resp.SetKV(req.KV())
	echoFields(resp)
	return http.StatusOK
}

// JSON echoes a JSON body.
func JSON(req *api.Request, resp *api.Response) int {
	if req.ContentType != api.ApplicationJSON {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	resp.SetJSON(req.JSON())
	echoFields(resp)
	return http.StatusOK
}

// Form echoes a multipart body.
func Form(req *api.Request, resp *api.Response) int {
	if req.ContentType != api.MultipartFormData {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	resp.SetForm(req.Form())
	echoFields(resp)
	return http.StatusOK
}

// Test reads four typed fields whatever their encoding and replies in the
// request's content type.
func Test(req *api.Request, resp *api.Response) int {
	b := req.GetBool("bool")
	n := req.GetInt("int")
	f := req.GetFloat("float")
	str := req.GetString("string")

	resp.ContentType = req.ContentType
	resp.Set("bool", b)
	resp.Set("int", n)
	resp.Set("float", f)
	resp.Set("string", str)
	api.Status(resp, 0, "OK")
	return http.StatusOK
}

// GRPC only checks the content type; the protobuf payload is not decoded.
func GRPC(req *api.Request, resp *api.Response) int {
	if req.ContentType != api.ApplicationGRPC {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	api.Status(resp, 0, "OK")
	return http.StatusOK
}

// Restful echoes the path parameters of /group/{group_name}/user/{user_id}.
func Restful(req *api.Request, resp *api.Response) int {
	resp.Set("group_name", req.GetParam("group_name", ""))
	resp.Set("user_id", req.GetParam("user_id", ""))
	api.Status(resp, 0, "OK")
	return http.StatusOK
}
