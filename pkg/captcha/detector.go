package captcha

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	mitigationHeader = "cf-mitigated"
	challengeDOMJS   = `() => !!window._cf_chl_opt`
)

// Reason diz qual probe detectou o desafio.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonHeader
	ReasonDOMMarker
)

func (r Reason) String() string {
	switch r {
	case ReasonHeader:
		return "header"
	case ReasonDOMMarker:
		return "dom"
	default:
		return "none"
	}
}

// ChallengeResult é o resultado de uma detecção. Reason só vale quando
// Detected é true.
type ChallengeResult struct {
	Detected bool
	Reason   Reason
}

// Detector verifica se a página atual é um desafio gerenciado de página
// inteira.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

// Detect roda o probe de cabeçalho e depois o de DOM, parando no primeiro
// positivo. resp pode ser nil. Falhas de avaliação contam como "não detectado".
func (d *Detector) Detect(ctx context.Context, page Page, resp *Response) ChallengeResult {
	if strings.EqualFold(strings.TrimSpace(resp.Header(mitigationHeader)), "challenge") {
		return ChallengeResult{Detected: true, Reason: ReasonHeader}
	}

	present, err := page.EvalBool(ctx, challengeDOMJS)
	if err != nil {
		d.logger.Debug("[Challenge] probe de DOM falhou", zap.Error(err))
		return ChallengeResult{}
	}
	if present {
		return ChallengeResult{Detected: true, Reason: ReasonDOMMarker}
	}
	return ChallengeResult{}
}
