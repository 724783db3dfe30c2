package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakomon/renewal/pkg/config"
	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/pkg/observability"
	"github.com/bakomon/renewal/pkg/runstate"
	"github.com/bakomon/renewal/services/scheduler/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	logger := observability.NewLogger("scheduler", cfg.Log)
	defer observability.Sync(logger)

	logger.Info("Renewal Scheduler iniciando...", zap.Int("sites", len(cfg.Sites)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Erro Redis", zap.String("addr", cfg.Redis.Address), zap.Error(err))
	}
	store := runstate.NewStore(rdb)
	defer store.Close()

	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		logger.Fatal("Erro NATS", zap.Error(err))
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Erro JetStream", zap.Error(err))
	}
	if err := jobs.EnsureStream(js, cfg.Nats.Stream, cfg.Nats.Subject); err != nil {
		logger.Fatal("Erro stream", zap.Error(err))
	}

	sched := scheduler.New(store, js, cfg.Nats.Subject, cfg.Sites, logger)

	// SCHEDULER_ONCE: um ciclo só, para cron externo
	if os.Getenv("SCHEDULER_ONCE") != "" {
		if _, err := sched.Tick(ctx); err != nil {
			logger.Error("ciclo com erros", zap.Error(err))
			observability.Sync(logger)
			os.Exit(1)
		}
		return
	}

	interval := time.Duration(cfg.Scheduler.Interval) * time.Second
	logger.Info("Scheduler rodando!", zap.Duration("intervalo", interval))
	if err := sched.Run(ctx, interval); err != nil {
		logger.Fatal("Erro no agendamento", zap.Error(err))
	}
}
