package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bakomon/renewal/pkg/config"
	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/pkg/runstate"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Publisher é o pedaço do JetStream que o scheduler usa.
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type Scheduler struct {
	store   *runstate.Store
	pub     Publisher
	subject string
	sites   []config.SiteConfig
	logger  *zap.Logger
	now     func() time.Time
}

func New(store *runstate.Store, pub Publisher, subject string, sites []config.SiteConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		pub:     pub,
		subject: subject,
		sites:   sites,
		logger:  logger,
		now:     time.Now,
	}
}

// Tick publica um job para cada site ativo e vencido e devolve os nomes
// publicados. Erro num site não impede os outros.
func (s *Scheduler) Tick(ctx context.Context) ([]string, error) {
	now := s.now()
	var published []string
	var failures int

	for _, site := range s.sites {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if !site.IsEnabled() {
			continue
		}
		log := s.logger.With(zap.String("site", site.Name))

		due, err := s.store.Due(ctx, site, now)
		if err != nil {
			log.Error("[Scheduler] erro verificando vencimento", zap.Error(err))
			failures++
			continue
		}
		if !due {
			log.Debug("[Scheduler] ainda não venceu")
			continue
		}

		job := jobs.NewRenewJob(site.Name, now)
		if err := s.publish(job); err != nil {
			log.Error("[Scheduler] erro ao publicar job", zap.Error(err))
			failures++
			continue
		}

		// só marca DEPOIS do publish: se falhar, o próximo tick tenta de novo
		if err := s.store.MarkRun(ctx, site.Name, now); err != nil {
			log.Warn("[Scheduler] job publicado mas a marcação falhou", zap.Error(err))
		}
		log.Info("[Scheduler] 📤 job publicado", zap.String("job_id", job.ID))
		published = append(published, site.Name)
	}

	if failures > 0 {
		return published, fmt.Errorf("%d site(s) com erro no ciclo", failures)
	}
	return published, nil
}

func (s *Scheduler) publish(job jobs.RenewJob) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}
	_, err = s.pub.Publish(s.subject, data, nats.MsgId(job.ID))
	return err
}

// Spec monta a expressão cron para um intervalo fixo.
func Spec(interval time.Duration) string {
	return "@every " + interval.String()
}

// Run roda um ciclo agora e depois um a cada interval, até ctx acabar. Um
// ciclo lento não empilha com o próximo.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(Spec(interval), func() { s.cycle(ctx) }); err != nil {
		return fmt.Errorf("erro agendando ciclo (%s): %w", Spec(interval), err)
	}

	s.cycle(ctx)
	c.Start()

	<-ctx.Done()
	s.logger.Info("[Scheduler] Encerrando...")
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) cycle(ctx context.Context) {
	s.logger.Info("[Scheduler] --- Iniciando ciclo ---")
	published, err := s.Tick(ctx)
	if err != nil {
		s.logger.Warn("[Scheduler] ciclo com erros", zap.Error(err))
	}
	s.logger.Info("[Scheduler] ciclo concluído", zap.Strings("publicados", published))
}
