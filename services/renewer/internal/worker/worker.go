package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/services/renewer/internal/sites"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	fetchWait     = 10 * time.Second
	fetchBackoff  = 2 * time.Second
	retryDelay    = time.Minute
	minJobDelay   = 3 * time.Second
	maxJobDelay   = 8 * time.Second
	AckWait       = 10 * time.Minute
	MaxDeliveries = 3
)

// Runner executa um job.
type Runner interface {
	Run(ctx context.Context, job jobs.RenewJob) error
}

// Fetcher é a parte do pull subscriber que o loop usa.
type Fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// Message é o que o worker precisa de uma mensagem JetStream.
type Message interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

type Worker struct {
	sub    Fetcher
	runner Runner
	logger *zap.Logger
	sleep  captcha.SleepFunc
	rng    *rand.Rand
}

func New(sub Fetcher, runner Runner, logger *zap.Logger) *Worker {
	return &Worker{
		sub:    sub,
		runner: runner,
		logger: logger,
		sleep:  captcha.SleepContext,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Subscribe cria o pull subscriber com durable compartilhado: vários
// workers dividem a fila.
func Subscribe(js nats.JetStreamContext, subject, durable string) (*nats.Subscription, error) {
	return js.PullSubscribe(subject, durable, nats.AckWait(AckWait), nats.MaxDeliver(MaxDeliveries))
}

// Run consome jobs um por vez até ctx acabar.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("[Worker] rodando! Consumindo jobs sequencialmente...")
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := w.sub.Fetch(1, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue // Nenhuma mensagem na fila
			}
			w.logger.Warn("[Worker] Erro no Fetch", zap.Error(err))
			if err := w.sleep(ctx, fetchBackoff); err != nil {
				return nil
			}
			continue
		}

		for _, msg := range msgs {
			w.Handle(ctx, msg.Data, msg)
		}

		// Delay anti-rate-limit entre jobs
		if err := w.sleep(ctx, w.RandomDelay()); err != nil {
			return nil
		}
	}
}

// Handle processa uma mensagem. Payload inválido ou site desconhecido
// encerram a mensagem (não adianta reentregar); falha na renovação volta
// para a fila com atraso.
func (w *Worker) Handle(ctx context.Context, data []byte, msg Message) {
	job, err := jobs.Decode(data)
	if err != nil {
		w.logger.Error("[Worker] ❌ job inválido", zap.Error(err))
		w.settle(msg.Term())
		return
	}
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("site", job.Site))
	log.Info("[Worker] 📥 Recebido job")

	err = w.runner.Run(ctx, job)
	switch {
	case err == nil:
		w.settle(msg.Ack())
	case errors.Is(err, sites.ErrUnknownSite):
		log.Error("[Worker] ❌ site sem roteiro", zap.Error(err))
		w.settle(msg.Term())
	default:
		log.Error("[Worker] ❌ erro processando job", zap.Error(err))
		w.settle(msg.NakWithDelay(retryDelay))
	}
}

func (w *Worker) settle(err error) {
	if err != nil {
		w.logger.Warn("[Worker] ⚠️ erro confirmando mensagem", zap.Error(err))
	}
}

// RandomDelay sorteia a pausa entre jobs.
func (w *Worker) RandomDelay() time.Duration {
	return minJobDelay + time.Duration(w.rng.Int64N(int64(maxJobDelay-minJobDelay)+1))
}
