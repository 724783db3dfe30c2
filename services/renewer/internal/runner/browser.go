package runner

import (
	"context"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"github.com/bakomon/renewal/pkg/config"
	"github.com/bakomon/renewal/services/renewer/internal/browser"
	"github.com/bakomon/renewal/services/renewer/internal/sites"
	"go.uber.org/zap"
)

// BrowserOpener lança um Chrome stealth por execução e monta o solver em
// cima da página.
type BrowserOpener struct {
	browser   config.BrowserConfig
	turnstile config.TurnstileConfig
}

func NewBrowserOpener(cfg *config.Config) *BrowserOpener {
	return &BrowserOpener{browser: cfg.Browser, turnstile: cfg.Turnstile}
}

func (o *BrowserOpener) Open(ctx context.Context, observer captcha.Observer, logger *zap.Logger) (*Browsing, error) {
	sess, err := browser.Launch(ctx, o.browser, logger)
	if err != nil {
		return nil, err
	}

	page := captcha.NewRodPage(sess.Page)
	opts := []captcha.Option{
		captcha.WithLogger(logger),
		captcha.WithObserver(observer),
		captcha.WithMotionConfig(MotionConfig(o.turnstile)),
		captcha.WithDefaults(Settings(o.turnstile)),
	}
	if o.turnstile.Visual {
		opts = append(opts, captcha.WithOverlay(captcha.NewRodOverlay(sess.Page)))
	}

	return &Browsing{
		Page:   sites.NewRodPage(page),
		Solver: captcha.NewSolver(page, opts...),
		Close:  sess.Close,
	}, nil
}

// Settings converte a seção turnstile da config.
func Settings(cfg config.TurnstileConfig) captcha.Settings {
	s := captcha.DefaultSettings()
	s.SolveDelayEnabled = cfg.DelayEnabled()
	if cfg.SolveDelaySeconds > 0 {
		s.SolveDelay = cfg.SolveDelay()
	}
	if cfg.MaxAttempts > 0 {
		s.MaxAttempts = cfg.MaxAttempts
	}
	return s
}

func MotionConfig(cfg config.TurnstileConfig) captcha.MotionConfig {
	m := captcha.DefaultMotionConfig()
	if cfg.DwellMinMs > 0 {
		m.DwellMin = time.Duration(cfg.DwellMinMs) * time.Millisecond
	}
	if cfg.DwellMaxMs > 0 {
		m.DwellMax = time.Duration(cfg.DwellMaxMs) * time.Millisecond
	}
	return m
}
