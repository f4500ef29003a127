package xhttp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newCtx(method, path string) *RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		ctx := newCtx("GET", "/api/v1/customers")
		var seen string
		RequestIDMiddleware(func(ctx *RequestCtx) {
			seen = requestID(ctx)
		})(ctx)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, string(ctx.Response.Header.Peek(HeaderRequestID)))
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		ctx := newCtx("GET", "/api/v1/customers")
		ctx.Request.Header.Set(HeaderRequestID, "abc")
		RequestIDMiddleware(func(*RequestCtx) {})(ctx)

		assert.Equal(t, "abc", string(ctx.Response.Header.Peek(HeaderRequestID)))
	})
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	h := CORSMiddleware("*")(func(*RequestCtx) { called = true })

	ctx := newCtx("OPTIONS", "/api/v1/customers")
	h(ctx)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = newCtx("GET", "/api/v1/customers")
	h(ctx)
	assert.True(t, called)
}

func TestRecoverMiddleware(t *testing.T) {
	ctx := newCtx("GET", "/boom")
	RecoverMiddleware(func(*RequestCtx) { panic("boom") })(ctx)

	assert.Equal(t, StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"message":"Internal server error"}`, string(ctx.Response.Body()))
}

func TestTimeoutMiddleware(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	handler := TimeoutMiddleware(50 * time.Millisecond)(func(ctx *RequestCtx) {
		if string(ctx.Path()) == "/slow" {
			<-release
		}
		ctx.SetStatusCode(StatusOK)
		ctx.SetBodyString("done")
	})

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	do := func(path string) (int, string, string) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)
		req.SetRequestURI("http://test" + path)
		require.NoError(t, client.DoTimeout(req, resp, 2*time.Second))
		return resp.StatusCode(), string(resp.Header.ContentType()), string(resp.Body())
	}

	t.Run("fast handler passes through", func(t *testing.T) {
		status, _, body := do("/fast")
		assert.Equal(t, StatusOK, status)
		assert.Equal(t, "done", body)
	})

	t.Run("slow handler gets json 408", func(t *testing.T) {
		status, contentType, body := do("/slow")
		assert.Equal(t, StatusRequestTimeout, status)
		assert.Equal(t, "application/json; charset=utf-8", contentType)
		assert.JSONEq(t, `{"message":"Request timeout"}`, body)
	})
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, shouldSkip("/api/v1/health"))
	assert.True(t, shouldSkip("/metrics"))
	assert.False(t, shouldSkip("/api/v1/customers"))
}
