package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/services/renewer/internal/repository"
	"github.com/bakomon/renewal/services/renewer/internal/sites"
	"go.uber.org/zap"
)

const finishTimeout = 10 * time.Second

// Browsing é o navegador aberto para uma execução.
type Browsing struct {
	Page   sites.Page
	Solver sites.Challenger
	Close  func() error
}

// Opener abre um navegador novo por execução; o observer recebe os eventos
// do solver dessa sessão.
type Opener interface {
	Open(ctx context.Context, observer captcha.Observer, logger *zap.Logger) (*Browsing, error)
}

type History interface {
	Save(ctx context.Context, rn repository.Renewal) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, key, msg string) error
}

// Metrics é o captcha.Observer com os contadores de renovação.
type Metrics interface {
	captcha.Observer
	ChallengeDetected()
	RenewResult(ok bool)
}

// Runner executa um RenewJob de ponta a ponta.
type Runner struct {
	opener   Opener
	settings captcha.Settings
	logger   *zap.Logger
	history  History
	notifier Notifier
	metrics  Metrics
	lookup   func(string) (sites.Site, error)
	now      func() time.Time
}

type Option func(*Runner)

func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSites troca o registro de roteiros.
func WithSites(lookup func(string) (sites.Site, error)) Option {
	return func(r *Runner) { r.lookup = lookup }
}

func New(opener Opener, settings captcha.Settings, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		opener:   opener,
		settings: settings,
		logger:   logger,
		lookup:   sites.Lookup,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	return r
}

// Run roda o roteiro do site do job. Site desconhecido volta direto, sem
// histórico.
func (r *Runner) Run(ctx context.Context, job jobs.RenewJob) error {
	site, err := r.lookup(job.Site)
	if err != nil {
		return err
	}
	log := r.logger.With(zap.String("job_id", job.ID), zap.String("site", job.Site))

	started := r.now()
	challenged := false

	runErr := func() error {
		b, err := r.opener.Open(ctx, r.metrics, log)
		if err != nil {
			return fmt.Errorf("erro abrindo navegador: %w", err)
		}
		defer func() {
			if err := b.Close(); err != nil {
				log.Warn("erro fechando navegador", zap.Error(err))
			}
		}()

		sess := &sites.Session{
			Page:     b.Page,
			Solver:   b.Solver,
			Settings: r.settings,
			Logger:   log,
			OnChallenge: func() {
				challenged = true
				r.metrics.ChallengeDetected()
			},
		}
		return site.Run(ctx, sess)
	}()

	r.finish(ctx, log, repository.Renewal{
		JobID:      job.ID,
		Site:       job.Site,
		Success:    runErr == nil,
		Error:      errString(runErr),
		Challenged: challenged,
		StartedAt:  started,
		Duration:   r.now().Sub(started),
	}, runErr)
	return runErr
}

// finish registra o resultado mesmo com ctx já cancelado.
func (r *Runner) finish(ctx context.Context, log *zap.Logger, rn repository.Renewal, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	r.metrics.RenewResult(rn.Success)

	if r.history != nil {
		if id, err := r.history.Save(ctx, rn); err != nil {
			log.Error("erro salvando histórico", zap.Error(err))
		} else {
			log.Debug("histórico salvo", zap.String("id", id))
		}
	}

	if runErr == nil {
		log.Info("✅ Renovação concluída", zap.Duration("took", rn.Duration))
		return
	}
	log.Error("❌ Renovação falhou", zap.Error(runErr), zap.Duration("took", rn.Duration))

	if r.notifier != nil {
		msg := fmt.Sprintf("❌ Renovação de **%s** falhou: %v", rn.Site, runErr)
		if err := r.notifier.Notify(ctx, "failure:"+rn.Site, msg); err != nil {
			log.Warn("erro notificando falha", zap.Error(err))
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type nopMetrics struct{}

func (nopMetrics) StateChanged(captcha.State, captcha.State) {}
func (nopMetrics) SolveFinished(captcha.Outcome)             {}
func (nopMetrics) ChallengeDetected()                        {}
func (nopMetrics) RenewResult(bool)                          {}
