package http

import (
	"context"
	"io"
	"net"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/transport"
)

func startServer(t *testing.T, d *transport.Dispatcher, opts ...ServerOption) (addr string, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	srv := NewServer(d, opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeOn(ctx, ln) }()
	return ln.Addr().String(), cancelFn, errCh
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	d := transport.NewDispatcher(transport.Options{Loops: 1})
	d.Handle("GET /ping", transport.HandlerFunc(func(_ *api.Request, resp *api.Response) int {
		resp.Set("message", "pong")
		return 0
	}))

	addr, cancel, done := startServer(t, d)

	resp, err := gohttp.Get("http://" + addr + "/ping")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	obj, err := api.DecodeJSON(body)
	if err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if obj.Get("message").String() != "pong" {
		t.Errorf("message = %q, want pong", obj.Get("message").String())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("ServeOn = %v, want nil", err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	d := transport.NewDispatcher(transport.Options{Loops: 1})
	d.Handle("GET /slow", transport.ContextHandlerFunc(func(c *transport.Context) int {
		c.SetTimeout(200*time.Millisecond, func(w *transport.Writer) {
			w.Response().Set("slow", true)
		})
		return transport.Pending
	}))

	addr, cancel, done := startServer(t, d, WithShutdownTimeout(5*time.Second))

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + addr + "/slow")
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
	if err := <-done; err != nil {
		t.Errorf("ServeOn = %v, want nil", err)
	}
}

func TestServerShutdownAbortsStuckExchanges(t *testing.T) {
	d := transport.NewDispatcher(transport.Options{Loops: 1})
	d.Handle("GET /stuck", transport.ContextHandlerFunc(func(c *transport.Context) int {
		c.Writer().Begin()
		c.Go(func(context.Context) error {
			<-c.Writer().Done()
			return nil
		})
		return transport.Pending
	}))

	addr, cancel, done := startServer(t, d, WithShutdownTimeout(100*time.Millisecond))

	errCh := make(chan error, 1)
	go func() {
		resp, err := gohttp.Get("http://" + addr + "/stuck")
		if err == nil {
			_, err = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("stuck request completed, want a connection error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stuck request was not aborted")
	}
	if err := <-done; err == nil {
		t.Error("ServeOn = nil, want the shutdown deadline error")
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	d := transport.NewDispatcher(transport.Options{Loops: 1})
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	srv := NewServer(d,
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithMetricsPath(""),
		WithShutdownTimeout(10*time.Second),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.MetricsPath != "" {
		t.Errorf("metrics path = %q, want empty", srv.config.MetricsPath)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}
