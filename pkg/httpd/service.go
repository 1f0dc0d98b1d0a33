// Package httpd wires the example services onto a transport.Dispatcher:
// inline echo handlers, a timer-deferred handler, a background file
// streamer, login and uploads.
package httpd

import (
	"log/slog"

	"github.com/rhuss/httpd/pkg/auth"
	"github.com/rhuss/httpd/pkg/storage"
	"github.com/rhuss/httpd/pkg/transport"
)

// DefaultDocumentRoot is the directory downloads are served from.
const DefaultDocumentRoot = "html"

// Options configures the example services.
type Options struct {
	// DocumentRoot prefixes the request path of /downloads/... requests.
	DocumentRoot string

	// Uploads receives files posted to /upload. Nil disables the route's
	// storage and answers 503.
	Uploads storage.UploadStore

	// Tokens issues the token returned by /login. Defaults to the static
	// token.
	Tokens TokenIssuer

	// Auth guards every path outside AuthBypass. Nil disables it.
	Auth       *auth.AuthChain
	AuthBypass []string

	// Limiter throttles clients before any other processing. Nil disables it.
	Limiter auth.RateLimiter

	// Loops is the number of event loops. Zero uses one per CPU.
	Loops int

	Logger *slog.Logger
}

// Service holds the handlers of the example routes.
type Service struct {
	root    string
	uploads storage.UploadStore
	tokens  TokenIssuer
	logger  *slog.Logger
	opts    Options
}

// New creates the service set.
func New(opts Options) *Service {
	if opts.DocumentRoot == "" {
		opts.DocumentRoot = DefaultDocumentRoot
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken(DefaultToken)
	}
	if opts.AuthBypass == nil {
		opts.AuthBypass = auth.DefaultBypassEndpoints
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		root:    opts.DocumentRoot,
		uploads: opts.Uploads,
		tokens:  opts.Tokens,
		logger:  opts.Logger,
		opts:    opts,
	}
}

// NewDispatcher builds a dispatcher running the example pipeline with every
// route registered.
func (s *Service) NewDispatcher() *transport.Dispatcher {
	d := transport.NewDispatcher(transport.Options{
		Preprocessor:  Preprocessor(s.opts.Limiter, s.opts.Auth, s.opts.AuthBypass),
		Postprocessor: Postprocessor,
		Middleware: []transport.Middleware{
			transport.Recovery(),
			transport.RequestID(),
			transport.Logging(s.logger),
		},
		Loops:  s.opts.Loops,
		Logger: s.logger,
	})
	s.Register(d)
	return d
}

// Register adds the example routes to d.
func (s *Service) Register(d *transport.Dispatcher) {
	d.Handle("GET /ping", transport.HandlerFunc(Ping))
	d.Handle("GET /sleep", transport.HandlerFunc(Sleep))
	d.Handle("GET /setTimeout", transport.ContextHandlerFunc(SetTimeout))
	d.Handle("GET /query", transport.HandlerFunc(Query))
	d.Handle("POST /kv", transport.HandlerFunc(KV))
	d.Handle("POST /json", transport.HandlerFunc(JSON))
	d.Handle("POST /form", transport.HandlerFunc(Form))
	d.Handle("POST /test", transport.HandlerFunc(Test))
	d.Handle("POST /grpc", transport.HandlerFunc(GRPC))
	d.Handle("GET /group/{group_name}/user/{user_id}", transport.HandlerFunc(Restful))
	d.Handle("POST /login", transport.HandlerFunc(s.Login))
	d.Handle("POST /upload", transport.HandlerFunc(s.Upload))
	d.Handle("GET /downloads/{path...}", transport.WriterHandlerFunc(s.LargeFile))
	d.Handle("GET /uploads/{name}", transport.WriterHandlerFunc(s.UploadedFile))
}
