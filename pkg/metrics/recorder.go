package metrics

import (
	"context"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	KeySolveAttempts     = "renewal:metrics:solve_attempts"
	KeySolveSuccess      = "renewal:metrics:solve_success"
	KeySolveExhausted    = "renewal:metrics:solve_exhausted"
	KeyChallengeDetected = "renewal:metrics:challenge_detected"
	KeyRenewSuccess      = "renewal:metrics:renew_success"
	KeyRenewFailure      = "renewal:metrics:renew_failure"
)

const writeTimeout = 2 * time.Second

// Recorder conta os eventos do solver e das renovações no Redis.
// Implementa captcha.Observer.
type Recorder struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

var _ captcha.Observer = (*Recorder)(nil)

func NewRecorder(rdb redis.Cmdable, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{rdb: rdb, logger: logger}
}

// StateChanged conta um clique a cada entrada em CLICK.
func (r *Recorder) StateChanged(_, to captcha.State) {
	if to == captcha.StateClick {
		r.incr(KeySolveAttempts)
	}
}

func (r *Recorder) SolveFinished(outcome captcha.Outcome) {
	switch outcome.State {
	case captcha.StateSolved:
		r.incr(KeySolveSuccess)
	case captcha.StateExhausted:
		r.incr(KeySolveExhausted)
	}
}

func (r *Recorder) ChallengeDetected() {
	r.incr(KeyChallengeDetected)
}

func (r *Recorder) RenewResult(ok bool) {
	if ok {
		r.incr(KeyRenewSuccess)
		return
	}
	r.incr(KeyRenewFailure)
}

// incr não propaga erro: métrica perdida não derruba uma renovação.
func (r *Recorder) incr(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.rdb.Incr(ctx, key).Err(); err != nil {
		r.logger.Warn("metrics: erro incrementando", zap.String("key", key), zap.Error(err))
	}
}
