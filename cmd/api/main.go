package main

import (
	"os"
	"strings"

	"github.com/nimasrn/poultry-ledger/internal/app"
	"github.com/nimasrn/poultry-ledger/internal/config"
	"github.com/nimasrn/poultry-ledger/internal/events"
	"github.com/nimasrn/poultry-ledger/internal/handlers"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/services"
	"github.com/nimasrn/poultry-ledger/pkg/auth"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	host, _ := os.Hostname()
	if err := prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed creating metrics", "error", err)
		return
	}
	if cfg.AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	opts := app.APIOptions{
		BaseURI:        cfg.HttpBaseRequestUrl,
		Server:         serverOption(cfg),
		Paging:         model.Paging{DefaultLimit: cfg.PaginationDefaultLimit, MaxLimit: cfg.PaginationMaxLimit},
		RequestTimeout: cfg.HttpRequestTimeout,
		CORSOrigin:     cfg.HttpCORSOrigin,
	}

	if !cfg.AuthDisabled {
		issuer, err := auth.NewIssuer(cfg.AuthJWTSecret, cfg.AuthTokenTTL, cfg.AuthIssuer)
		if err != nil {
			logger.Error("failed creating token verifier", "error", err)
			return
		}
		opts.Verifier = issuer
	} else {
		logger.Warn("authentication is disabled")
	}

	if !cfg.EventsDisabled {
		publisher, adapter, err := eventPublisher(cfg)
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		opts.Publisher = publisher
		opts.Checks = map[string]handlers.Pinger{"redis": adapter}
	}

	api := app.NewAPI(db, opts)

	api.CloseOnSignal()
	if err := api.ListenAndServe(cfg.HttpListenAddr); err != nil {
		logger.Error("error in running http-server", "error", err)
	}
}

func serverOption(cfg *config.Config) xhttp.ServerOption {
	o := xhttp.DefaultServerOption
	if cfg.HttpServerReadTimeout > 0 {
		o.ReadTimeout = cfg.HttpServerReadTimeout
	}
	if cfg.HttpServerWriteTimeout > 0 {
		o.WriteTimeout = cfg.HttpServerWriteTimeout
	}
	if cfg.HttpServerReadBufferSize > 0 {
		o.ReadBufferSize = cfg.HttpServerReadBufferSize
	}
	if cfg.HttpServerWriteBufferSize > 0 {
		o.WriteBufferSize = cfg.HttpServerWriteBufferSize
	}
	return o
}

func eventPublisher(cfg *config.Config) (services.EventPublisher, redis.RedisAdapter, error) {
	adapter, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.Redis())
	if err != nil {
		return nil, nil, err
	}
	stream, err := events.NewStream(adapter, events.Config{
		Stream: cfg.EventsStream,
		MaxLen: cfg.EventsMaxLen,
	})
	if err != nil {
		return nil, nil, err
	}
	return stream, adapter, nil
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
