package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/config"
	"github.com/nimasrn/poultry-ledger/internal/events"
	"github.com/nimasrn/poultry-ledger/internal/repository"
	"github.com/nimasrn/poultry-ledger/internal/services"
	"github.com/nimasrn/poultry-ledger/pkg/auth"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
)

const usage = `usage: cli <command> [--env=.env]

commands:
  migrate        apply pending migrations (--dir=./migrations)
  backfill-type  set type on transactions that have none
  token          print a signed API token (--sub=operator)
  dead-letters   list events the notifier gave up on`

func main() {
	defer logger.Sync()

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		fmt.Println(usage)
		os.Exit(2)
	}

	if err := config.Load(getEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = migrate()
	case "backfill-type":
		err = backfillType()
	case "token":
		err = token()
	case "dead-letters":
		err = deadLetters()
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func migrate() error {
	dir := argValue("--dir=")
	if dir == "" {
		dir = config.Get().MigrationsDir
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	return pg.Migrate(config.Get().PostgresWrite(), dir)
}

func backfillType() error {
	cfg := config.Get()
	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := services.NewMigrationService(repository.NewTransactionRepository(db)).BackfillType(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("found %d transactions without type, updated %d\n", res.Matched, res.Modified)
	return nil
}

func token() error {
	cfg := config.Get()
	issuer, err := auth.NewIssuer(cfg.AuthJWTSecret, cfg.AuthTokenTTL, cfg.AuthIssuer)
	if err != nil {
		return err
	}
	sub := argValue("--sub=")
	if sub == "" {
		sub = "operator"
	}
	t, err := issuer.Sign(sub)
	if err != nil {
		return err
	}
	fmt.Println(t)
	return nil
}

func deadLetters() error {
	cfg := config.Get()
	adapter, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.Redis())
	if err != nil {
		return err
	}
	stream, err := events.NewStream(adapter, events.Config{
		Stream:        cfg.EventsStream,
		ConsumerGroup: cfg.EventsConsumerGroup,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dead, err := stream.DeadLetters(ctx)
	if err != nil {
		return err
	}
	for _, d := range dead {
		if d.Event == nil {
			fmt.Printf("%s\t<undecodable>\tattempts=%d\n", d.ID, d.Attempts)
			continue
		}
		fmt.Printf("%s\t%s\t%s\t%s\tattempts=%d\n", d.ID, d.Event.ID, d.Event.Kind, d.Event.EntityID, d.Attempts)
	}
	fmt.Printf("%d dead letters\n", len(dead))
	return nil
}

func getEnvPath() string {
	if p := argValue("--env="); p != "" {
		if _, err := os.Stat(p); err != nil {
			logger.Error("failed to open the passed env file", "path", p, "error", err)
			return ""
		}
		return p
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

func argValue(prefix string) string {
	for _, v := range os.Args[2:] {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}
