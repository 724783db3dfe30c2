package main

import (
	"context"
	"fmt"

	"github.com/bakomon/renewal/pkg/metrics"
	"github.com/bakomon/renewal/pkg/notify"
	"github.com/bakomon/renewal/services/renewer/internal/repository"
	"github.com/bakomon/renewal/services/renewer/internal/runner"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deps é a infraestrutura compartilhada pelos subcomandos.
type deps struct {
	rdb      *redis.Client
	repo     *repository.RenewalRepository
	recorder *metrics.Recorder
}

func connect(ctx context.Context) (*deps, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis não responde em %s: %w", cfg.Redis.Address, err)
	}
	d := &deps{rdb: rdb, recorder: metrics.NewRecorder(rdb, logger)}

	if cfg.Database.URL == "" {
		logger.Warn("database.url vazio: histórico de renovações desligado")
		return d, nil
	}
	repo, err := repository.NewRenewalRepository(ctx, cfg.Database.URL, logger)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	d.repo = repo
	return d, nil
}

func (d *deps) runner() *runner.Runner {
	opts := []runner.Option{
		runner.WithMetrics(d.recorder),
		runner.WithNotifier(notify.NewDiscordNotifier(cfg.Discord.WebhookURL, d.rdb, logger)),
	}
	if d.repo != nil {
		opts = append(opts, runner.WithHistory(d.repo))
	}
	return runner.New(runner.NewBrowserOpener(cfg), runner.Settings(cfg.Turnstile), logger, opts...)
}

func (d *deps) Close(ctx context.Context) {
	if d.repo != nil {
		d.repo.Close(ctx)
	}
	if err := d.rdb.Close(); err != nil {
		logger.Warn("erro fechando redis", zap.Error(err))
	}
}
