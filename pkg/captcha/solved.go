package captcha

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	tokenSelector      = `input[name="cf-turnstile-response"]`
	loadingSelector    = `.lds-ring`
	minTokenLength     = 20
	loadingWaitTimeout = 2 * time.Second
)

// SolvedChecker decide se o widget (ou o desafio de página) foi resolvido.
type SolvedChecker struct {
	locator *FrameLocator
	logger  *zap.Logger
}

func NewSolvedChecker(locator *FrameLocator, logger *zap.Logger) *SolvedChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = NewFrameLocator(logger)
	}
	return &SolvedChecker{locator: locator, logger: logger}
}

// IsSolved procura primeiro o token de resposta com mais de 20 caracteres.
// Em modo de página de desafio também aceita o spinner de carregamento
// visível ou o sumiço do iframe do widget. Nunca devolve erro.
func (c *SolvedChecker) IsSolved(ctx context.Context, page Page, challengePage bool) bool {
	if el, err := page.Element(ctx, tokenSelector); err == nil {
		if value, err := el.Value(ctx); err == nil && len(value) > minTokenLength {
			return true
		}
	}

	if !challengePage {
		return false
	}

	if visible, err := page.WaitVisible(ctx, loadingSelector, loadingWaitTimeout); err == nil && visible {
		return true
	}

	_, found, err := c.locator.Locate(ctx, page)
	if err != nil {
		c.logger.Debug("[Turnstile] locate falhou durante a verificação", zap.Error(err))
		return false
	}
	return !found
}
