package xhttp

import (
	"net"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ServerOption holds the subset of fasthttp.Server settings the services tune.
type ServerOption struct {
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ReadBufferSize     int
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
}

var DefaultServerOption = ServerOption{
	Name:               "poultry-ledger",
	ReadTimeout:        2500 * time.Millisecond,
	WriteTimeout:       2500 * time.Millisecond,
	IdleTimeout:        10 * time.Second,
	ReadBufferSize:     4 * 1024, // also the max header size
	WriteBufferSize:    4 * 1024,
	MaxRequestBodySize: 4 * 1024 * 1024,
	Concurrency:        30_000,
}

type Server = fasthttp.Server

type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func newServer(o ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Name:                  o.Name,
		ReadTimeout:           o.ReadTimeout,
		WriteTimeout:          o.WriteTimeout,
		IdleTimeout:           o.IdleTimeout,
		ReadBufferSize:        o.ReadBufferSize,
		WriteBufferSize:       o.WriteBufferSize,
		MaxRequestBodySize:    o.MaxRequestBodySize,
		Concurrency:           o.Concurrency,
		MaxIdleWorkerDuration: time.Minute,
		TCPKeepalive:          true,
		TCPKeepalivePeriod:    2 * time.Hour,
		NoDefaultServerHeader: true,
		NoDefaultDate:         true,
		NoDefaultContentType:  true,
		CloseOnShutdown:       true,
		LogAllErrors:          true,
		Logger:                logger.GetLogger(),
		ErrorHandler: func(ctx *RequestCtx, err error) {
			logger.Warn("[xhttp] request error", "error", err)
		},
	}
}

func NewServer(o ServerOption) *Engine {
	return &Engine{
		Server: newServer(o),
		Router: CreateDefaultRouter(),
	}
}

func CreateServer() *Engine {
	return NewServer(DefaultServerOption)
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// Serve accepts connections on ln; used with in-memory listeners in tests.
func (e *Engine) Serve(ln net.Listener) error {
	e.DoRouting()
	return e.Server.Serve(ln)
}

// DoRouting installs the router as the server handler wrapped by the
// registered middleware, the first registered being the outermost.
func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}

	handler := RequestHandler(e.Router.Handler)
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for _, m := range middle {
		handler = m(handler)
		logger.Debug("[xhttp] middleware registered", "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = handler
}

// Handler returns the fully wrapped handler without starting a listener.
func (e *Engine) Handler() RequestHandler {
	e.DoRouting()
	return e.Server.Handler
}

// Use appends middleware to the chain run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

func (e *Engine) CloseOnSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		e.Shutdown()
	}()
}

func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
