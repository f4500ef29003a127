package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/events"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
	"github.com/nimasrn/poultry-ledger/pkg/worker"
)

// Consumer is the event source the service drains.
type Consumer interface {
	Consume(handler events.Handler) error
	Stop(timeout time.Duration) error
	Stats(ctx context.Context) (*events.Stats, error)
	Config() events.Config
}

type Config struct {
	Workers           int
	BufferSize        int
	ProcessingTimeout time.Duration
	ReportInterval    time.Duration
	ShutdownTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 10 * time.Second
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = time.Minute
	}
	return c
}

// Service reads ledger events from the stream and hands them to a worker
// pool running the processor.
type Service struct {
	consumer  Consumer
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	config    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(consumer Consumer, processor Processor, metrics *ServiceMetrics, config Config) *Service {
	config = config.withDefaults()
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		consumer:  consumer,
		processor: processor,
		metrics:   metrics,
		worker:    worker.NewWorkerManager(config.BufferSize, config.Workers),
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Service) Start() error {
	logger.Info("starting notifier", "stream", s.consumer.Config().Stream, "workers", s.config.Workers)

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil && err != worker.ErrStopped {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	if err := s.consumer.Consume(s.handle); err != nil {
		s.worker.Exit()
		return fmt.Errorf("start consumer: %w", err)
	}

	s.wg.Add(1)
	go s.reporter()
	return nil
}

func (s *Service) reporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.report()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) report() {
	m := s.metrics.Snapshot()
	logger.Info("notifier metrics",
		"delivered", m.Delivered,
		"failed", m.Failed,
		"rejected", m.Rejected,
		"skipped", m.Skipped,
		"rate_per_second", m.RatePerSecond,
		"avg_duration_ms", m.AvgDuration.Milliseconds())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := s.consumer.Stats(ctx)
	if err != nil {
		logger.Warn("stream stats unavailable", "error", err)
		return
	}
	prom.StreamPending(s.consumer.Config().Stream, stats.Pending)
	logger.Info("stream stats", "length", stats.Length, "pending", stats.Pending, "dead_letters", stats.DeadLetters)
}

func (s *Service) Stop() {
	logger.Info("shutting down notifier")

	if err := s.consumer.Stop(s.config.ShutdownTimeout); err != nil {
		logger.Error("error stopping consumer", "error", err)
	}
	s.cancel()
	s.worker.Exit()
	s.wg.Wait()
	s.report()

	logger.Info("notifier stopped")
}

type job struct {
	ctx      context.Context
	delivery *events.Delivery
	result   chan error
}

// handle blocks the stream loop until a worker has processed the
// delivery, so acknowledgement follows the outcome.
func (s *Service) handle(ctx context.Context, d *events.Delivery) error {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.ProcessingTimeout)
	defer cancel()

	j := &job{ctx: jobCtx, delivery: d, result: make(chan error, 1)}
	if err := s.worker.Enqueue(jobCtx, j); err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", jobCtx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, payload interface{}) {
	j, ok := payload.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("job expired before processing", "worker", workerIndex, "event_id", j.delivery.Event.ID)
		return
	}

	// result is buffered, the send never blocks
	j.result <- s.processor.Process(j.ctx, j.delivery)
}
