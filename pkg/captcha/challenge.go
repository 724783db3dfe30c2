package captcha

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	challengeRetryDelay  = 5 * time.Second
	challengeSettleDelay = 5 * time.Second
	navigationTimeout    = 30 * time.Second
	defaultChallengeRuns = 3
)

// ChallengeOutcome é o resultado de SolveChallenge. Response é a resposta
// da navegação mais recente observada.
type ChallengeOutcome struct {
	Response *Response
	Detected bool
	Reason   Reason
	Attempts int
}

// SolveChallenge trata um desafio de página inteira. Se nada for detectado
// volta na hora. Caso contrário, a cada tentativa espera a navegação
// disparada pela resolução enquanto roda o solver em modo de página de
// desafio, e detecta de novo com a resposta nova. Nunca devolve erro: o
// chamador olha Detected para saber se o desafio continua lá.
func (s *Solver) SolveChallenge(ctx context.Context, resp *Response, maxAttempts int) ChallengeOutcome {
	res := s.detector.Detect(ctx, s.page, resp)
	out := ChallengeOutcome{Response: resp, Detected: res.Detected, Reason: res.Reason}
	if !res.Detected {
		return out
	}

	s.logger.Info("[Challenge] 🛡️ desafio detectado", zap.Stringer("reason", res.Reason))

	if maxAttempts <= 0 {
		maxAttempts = defaultChallengeRuns
	}
	settings := s.defaults
	settings.ChallengePage = true

	for attempt := 0; attempt < maxAttempts; attempt++ {
		out.Attempts = attempt + 1

		if attempt > 0 {
			if err := s.sleep(ctx, challengeRetryDelay); err != nil {
				return out
			}
		}

		settings.Response = out.Response
		navigated := s.awaitNavigation(ctx)
		if _, err := s.Solve(ctx, settings); err != nil {
			s.logger.Warn("[Challenge] solver falhou", zap.Int("attempt", out.Attempts), zap.Error(err))
		}
		if nav := <-navigated; nav != nil {
			out.Response = nav
		}

		if err := s.sleep(ctx, challengeSettleDelay); err != nil {
			return out
		}

		res = s.detector.Detect(ctx, s.page, out.Response)
		out.Detected, out.Reason = res.Detected, res.Reason
		if !res.Detected {
			s.logger.Info("[Challenge] ✅ desafio resolvido", zap.Int("attempts", out.Attempts))
			return out
		}
		s.logger.Warn("[Challenge] ⚠️ desafio ainda presente", zap.Int("attempt", out.Attempts), zap.Int("max", maxAttempts))
	}

	s.logger.Warn("[Challenge] ❌ tentativas esgotadas, desafio continua na página")
	return out
}

// awaitNavigation começa a esperar a próxima navegação em paralelo. O canal
// recebe exatamente um valor: a resposta, ou nil se nada navegou.
func (s *Solver) awaitNavigation(ctx context.Context) <-chan *Response {
	ch := make(chan *Response, 1)
	go func() {
		nav, err := s.page.WaitNavigation(ctx, navigationTimeout)
		if err != nil {
			s.logger.Debug("[Challenge] sem navegação", zap.Error(err))
			nav = nil
		}
		ch <- nav
	}()
	return ch
}
