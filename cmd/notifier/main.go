package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/poultry-ledger/internal/config"
	"github.com/nimasrn/poultry-ledger/internal/events"
	"github.com/nimasrn/poultry-ledger/internal/notifier"
	"github.com/nimasrn/poultry-ledger/internal/webhook"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting notifier", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if cfg.AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.Redis())
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	consumerName := cfg.EventsConsumerName
	if consumerName == "" {
		consumerName = hostname
	}
	stream, err := events.NewStream(redisAdap, events.Config{
		Stream:            cfg.EventsStream,
		ConsumerGroup:     cfg.EventsConsumerGroup,
		ConsumerName:      consumerName,
		MaxRetries:        cfg.EventsMaxRetries,
		VisibilityTimeout: cfg.EventsVisibilityTimeout,
		PollInterval:      cfg.EventsPollInterval,
		BatchSize:         cfg.EventsBatchSize,
		EnableDLQ:         cfg.EventsEnableDLQ,
	})
	if err != nil {
		logger.Error("failed to create event stream", "error", err)
		return
	}

	client, err := webhook.NewClient(webhook.Config{
		URL:     cfg.WebhookURL,
		Secret:  cfg.WebhookSecret,
		Timeout: cfg.WebhookTimeout,
	})
	if err != nil {
		logger.Error("failed to create webhook client", "error", err)
		return
	}

	idempotency := notifier.NewIdempotency(redisAdap, notifier.IdempotencyConfig{
		LockTTL:      cfg.NotifierLockTTL,
		DeliveredTTL: cfg.NotifierDeliveredTTL,
	})
	metrics := notifier.NewServiceMetrics()
	service := notifier.NewService(stream, notifier.NewWebhookProcessor(client, idempotency, metrics), metrics, notifier.Config{
		Workers:           cfg.NotifierWorkers,
		ProcessingTimeout: cfg.WebhookTimeout * 2,
	})

	if err := service.Start(); err != nil {
		logger.Error("failed to start notifier", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
	if err := redisAdap.Client().Close(); err != nil {
		logger.Warn("failed closing redis", "error", err)
	}
	m := client.Metrics()
	logger.Info("webhook totals", "success_rate", m.SuccessRate(), "avg_latency_ms", m.AvgLatencyMs())
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
