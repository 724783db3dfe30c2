package captcha

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// frameURLMarkers identificam o iframe do widget pela URL.
var frameURLMarkers = []string{
	"turnstile",
	"challenges.cloudflare",
	"cloudflare.com",
}

// frameSelectors são usados quando nenhum frame casa pela URL.
var frameSelectors = []string{
	`iframe[src*="turnstile"]`,
	`iframe[title*="turnstile"]`,
	`iframe[src*="challenges.cloudflare"]`,
	`iframe[src*="cloudflare"]`,
}

// FrameLocator acha a caixa do iframe do widget na página.
type FrameLocator struct {
	logger *zap.Logger
}

func NewFrameLocator(logger *zap.Logger) *FrameLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameLocator{logger: logger}
}

// Locate devolve a primeira caixa de área positiva encontrada. found=false
// quando nada casa ou todos os candidatos estão escondidos. Falhas de um
// candidato (frame cross-origin, nó destacado) são ignoradas; só ErrDriverGone
// é devolvido como erro.
func (l *FrameLocator) Locate(ctx context.Context, page Page) (BoundingBox, bool, error) {
	frames, err := page.Frames(ctx)
	if err != nil {
		if errors.Is(err, ErrDriverGone) {
			return BoundingBox{}, false, err
		}
		l.logger.Debug("[Turnstile] falha listando frames", zap.Error(err))
	}

	for _, frame := range frames {
		if !matchesChallengeURL(frame.URL()) {
			continue
		}
		owner, err := frame.Owner(ctx)
		if err != nil {
			l.logger.Debug("[Turnstile] frame sem elemento dono", zap.String("url", frame.URL()), zap.Error(err))
			continue
		}
		if box, ok := elementBox(ctx, owner); ok {
			return box, true, nil
		}
	}

	for _, sel := range frameSelectors {
		el, err := page.Element(ctx, sel)
		if err != nil {
			if errors.Is(err, ErrDriverGone) {
				return BoundingBox{}, false, err
			}
			continue
		}
		if box, ok := elementBox(ctx, el); ok {
			return box, true, nil
		}
	}

	return BoundingBox{}, false, nil
}

func matchesChallengeURL(url string) bool {
	for _, marker := range frameURLMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

// elementBox usa a caixa do driver e, se ela não vier (elemento transformado),
// lê o retângulo do DOM.
func elementBox(ctx context.Context, el Element) (BoundingBox, bool) {
	box, err := el.Box(ctx)
	if err != nil || box == nil {
		box, err = el.ClientRect(ctx)
		if err != nil || box == nil {
			return BoundingBox{}, false
		}
	}
	if !box.Valid() {
		return BoundingBox{}, false
	}
	return *box, true
}
