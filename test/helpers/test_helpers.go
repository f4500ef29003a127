package helpers

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/poultry-ledger/internal/app"
	"github.com/nimasrn/poultry-ledger/internal/repository"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory sqlite database with the ledger schema.
func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&repository.CustomerEntity{}, &repository.TransactionEntity{}))
	return pg.Wrap(db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

// TestServer serves an API over an in-memory listener.
type TestServer struct {
	API     *app.API
	BaseURI string
	Token   string
	client  *fasthttp.Client
}

func StartTestServer(t *testing.T, api *app.API, baseURI string) *TestServer {
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = api.Serve(ln) }()
	t.Cleanup(func() {
		_ = api.Server.Shutdown()
		_ = ln.Close()
	})

	return &TestServer{
		API:     api,
		BaseURI: baseURI,
		client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		},
	}
}

// Response is a decoded API reply.
type Response struct {
	Status int
	Body   []byte
}

func (r Response) Decode(t *testing.T, dst any) {
	require.NoError(t, json.Unmarshal(r.Body, dst), string(r.Body))
}

func (r Response) Map(t *testing.T) map[string]any {
	var m map[string]any
	r.Decode(t, &m)
	return m
}

// Do sends a request to path below the base URI. body is JSON encoded
// unless it is nil or already a []byte.
func (s *TestServer) Do(t *testing.T, method, path string, body any) Response {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://ledger.test" + s.BaseURI + path)
	req.Header.SetMethod(method)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	switch b := body.(type) {
	case nil:
	case []byte:
		req.SetBody(b)
		req.Header.SetContentType("application/json")
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req.SetBody(raw)
		req.Header.SetContentType("application/json")
	}

	require.NoError(t, s.client.DoTimeout(req, resp, 5*time.Second))
	return Response{Status: resp.StatusCode(), Body: bytes.Clone(resp.Body())}
}
