package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

const (
	HeaderEventID   = "X-Ledger-Event-Id"
	HeaderEventKind = "X-Ledger-Event"
	HeaderSignature = "X-Ledger-Signature"
)

var (
	ErrNoURL       = errors.New("webhook: url is required")
	ErrCircuitOpen = errors.New("webhook: circuit open")
)

// DeliveryError is returned when the receiver answered with a non-2xx
// status. Permanent errors are not worth retrying.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != fasthttp.StatusTooManyRequests &&
		e.StatusCode != fasthttp.StatusRequestTimeout
}

// IsPermanent reports whether err is a delivery failure that a retry
// cannot fix.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent()
}

type Config struct {
	URL                     string
	Secret                  string
	Timeout                 time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Dial overrides the network dialer; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

type Metrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *Metrics) recordSuccess(latency time.Duration) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latency.Milliseconds())
	m.ConsecutiveFails.Store(0)
}

func (m *Metrics) recordFailure() int32 {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	return m.ConsecutiveFails.Add(1)
}

func (m *Metrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *Metrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

// Client posts ledger events to a single webhook endpoint.
type Client struct {
	config  Config
	http    *fasthttp.Client
	metrics *Metrics

	mu        sync.Mutex
	openUntil time.Time
	now       func() time.Time
}

func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, ErrNoURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 64
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}

	return &Client{
		config: config,
		http: &fasthttp.Client{
			Name:                "poultry-ledger-notifier",
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                config.Dial,
		},
		metrics: &Metrics{},
		now:     time.Now,
	}, nil
}

func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Deliver POSTs the event as JSON. It honours the context deadline and
// falls back to the configured timeout.
func (c *Client) Deliver(ctx context.Context, e *model.LedgerEvent) error {
	if c.circuitOpen() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "webhook: encode event")
	}

	start := c.now()
	err = c.post(ctx, e, body)
	if err != nil {
		if fails := c.metrics.recordFailure(); fails >= int32(c.config.CircuitBreakerThreshold) {
			c.openCircuit(fails)
		}
		return err
	}

	latency := c.now().Sub(start)
	c.metrics.recordSuccess(latency)
	logger.Debug("webhook delivered", "event_id", e.ID, "kind", e.Kind, "latency_ms", latency.Milliseconds())
	return nil
}

func (c *Client) post(ctx context.Context, e *model.LedgerEvent, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(HeaderEventID, e.ID)
	req.Header.Set(HeaderEventKind, string(e.Kind))
	if c.config.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(c.config.Secret, body))
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return errors.Wrap(err, "webhook: request failed")
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return &DeliveryError{StatusCode: code, Body: truncate(string(resp.Body()), 256)}
	}
	return nil
}

func (c *Client) circuitOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openUntil.IsZero() {
		return false
	}
	if c.now().After(c.openUntil) {
		// half-open: let the next request probe the receiver
		c.openUntil = time.Time{}
		return false
	}
	return true
}

func (c *Client) openCircuit(fails int32) {
	c.mu.Lock()
	c.openUntil = c.now().Add(c.config.CircuitBreakerTimeout)
	c.mu.Unlock()
	logger.Warn("webhook circuit opened", "url", c.config.URL, "consecutive_fails", fails,
		"timeout", c.config.CircuitBreakerTimeout)
}

// Sign returns the hex HMAC-SHA256 of body under secret, prefixed with
// the algorithm name.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
