package main

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/webhook"
	"github.com/rs/zerolog/log"
)

const maxKept = 500

// ReceivedEvent is a ledger event as the sink saw it.
type ReceivedEvent struct {
	Event      model.LedgerEvent `json:"event"`
	Signed     bool              `json:"signed"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Sink is a webhook receiver for local runs. It keeps the latest events in
// memory and can be told to fail the next N deliveries.
type Sink struct {
	secret string

	mu         sync.Mutex
	events     []ReceivedEvent
	seen       map[string]int
	failNext   int
	failStatus int
}

func NewSink(secret string) *Sink {
	return &Sink{secret: secret, seen: make(map[string]int)}
}

// Receive handles POST /events.
func (s *Sink) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(webhook.HeaderSignature)
	if s.secret != "" && !webhook.Verify(s.secret, body, signature) {
		log.Warn().
			Str("event_id", c.GetHeader(webhook.HeaderEventID)).
			Msg("rejected event with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var e model.LedgerEvent
	if err := json.Unmarshal(body, &e); err != nil || e.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}

	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		status := s.failStatus
		s.mu.Unlock()
		log.Warn().Str("event_id", e.ID).Int("status", status).Msg("failing delivery on request")
		c.JSON(status, gin.H{"error": "configured failure"})
		return
	}
	s.seen[e.ID]++
	dup := s.seen[e.ID] > 1
	s.events = append(s.events, ReceivedEvent{Event: e, Signed: signature != "", ReceivedAt: time.Now().UTC()})
	if len(s.events) > maxKept {
		s.events = s.events[len(s.events)-maxKept:]
	}
	s.mu.Unlock()

	log.Info().
		Str("event_id", e.ID).
		Str("kind", string(e.Kind)).
		Str("entity_id", e.EntityID).
		Bool("duplicate", dup).
		RawJSON("payload", e.Payload).
		Msg("ledger event received")

	c.JSON(http.StatusOK, gin.H{"received": e.ID})
}

// List handles GET /events, newest last. ?kind= filters by event kind.
func (s *Sink) List(c *gin.Context) {
	kind := c.Query("kind")

	s.mu.Lock()
	out := make([]ReceivedEvent, 0, len(s.events))
	for _, r := range s.events {
		if kind == "" || string(r.Event.Kind) == kind {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"events": out, "count": len(out)})
}

// Reset handles DELETE /events.
func (s *Sink) Reset(c *gin.Context) {
	s.mu.Lock()
	s.events = nil
	s.seen = make(map[string]int)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

// UpdateConfig handles PUT /config.
func (s *Sink) UpdateConfig(c *gin.Context) {
	var req struct {
		FailNext   int `json:"fail_next"`
		FailStatus int `json:"fail_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.FailStatus == 0 {
		req.FailStatus = http.StatusServiceUnavailable
	}
	if req.FailNext < 0 || req.FailStatus < 400 || req.FailStatus > 599 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fail_next must be >= 0 and fail_status a 4xx or 5xx code"})
		return
	}

	s.mu.Lock()
	s.failNext = req.FailNext
	s.failStatus = req.FailStatus
	s.mu.Unlock()

	log.Info().Int("fail_next", req.FailNext).Int("fail_status", req.FailStatus).Msg("updated sink config")
	c.JSON(http.StatusOK, gin.H{"fail_next": req.FailNext, "fail_status": req.FailStatus})
}

func (s *Sink) Health(c *gin.Context) {
	s.mu.Lock()
	n := len(s.events)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "received": n, "timestamp": time.Now().UTC()})
}

func SetupRouter(s *Sink) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	router.POST("/events", s.Receive)
	router.GET("/events", s.List)
	router.DELETE("/events", s.Reset)
	router.PUT("/config", s.UpdateConfig)
	router.GET("/health", s.Health)
	return router
}
