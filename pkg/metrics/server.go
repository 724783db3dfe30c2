package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MetricDef define o mapeamento entre uma chave Redis e uma métrica Prometheus.
type MetricDef struct {
	RedisKey string
	PromName string
	Help     string
	Type     string // "counter" ou "gauge"
}

// DefaultMetricDefs lista os contadores gravados pelo Recorder.
func DefaultMetricDefs() []MetricDef {
	return []MetricDef{
		{KeySolveAttempts, "renewal_solve_attempts_total", "Cliques disparados no widget", "counter"},
		{KeySolveSuccess, "renewal_solve_success_total", "Chamadas de Solve que terminaram resolvidas", "counter"},
		{KeySolveExhausted, "renewal_solve_exhausted_total", "Chamadas de Solve que esgotaram as tentativas", "counter"},
		{KeyChallengeDetected, "renewal_challenge_detected_total", "Desafios de página inteira detectados", "counter"},
		{KeyRenewSuccess, "renewal_renew_success_total", "Renovações concluídas", "counter"},
		{KeyRenewFailure, "renewal_renew_failure_total", "Renovações que falharam", "counter"},
	}
}

// Handler escreve as métricas no formato texto do Prometheus lendo os
// valores direto do Redis. Chave ausente vale zero.
func Handler(rdb redis.Cmdable, defs []MetricDef, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, m := range defs {
			val, err := rdb.Get(r.Context(), m.RedisKey).Result()
			if errors.Is(err, redis.Nil) {
				val = "0"
			} else if err != nil {
				logger.Warn("metrics: erro ao ler chave", zap.String("key", m.RedisKey), zap.Error(err))
				val = "0"
			}
			fmt.Fprintf(w, "# HELP %s %s\n", m.PromName, m.Help)
			fmt.Fprintf(w, "# TYPE %s %s\n", m.PromName, m.Type)
			fmt.Fprintf(w, "%s %s\n\n", m.PromName, val)
		}
	})
}

// StartMetricsServer expõe /metrics em port até ctx ser cancelado.
func StartMetricsServer(ctx context.Context, port string, rdb redis.Cmdable, defs []MetricDef, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(rdb, defs, logger))

	srv := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server ouvindo", zap.String("addr", port+"/metrics"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: falha ao iniciar servidor: %w", err)
	}
	return nil
}
