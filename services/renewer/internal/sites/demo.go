package sites

import (
	"context"
	"fmt"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"go.uber.org/zap"
)

const (
	demoURL          = "https://nopecha.com/demo/cloudflare"
	demoMarker       = ".demo_group"
	demoVerifyWindow = 5 * time.Second
	demoPollInterval = time.Second
)

// turnstileDemo exercita o solver contra uma página pública de teste.
type turnstileDemo struct {
	sleep captcha.SleepFunc
}

func (turnstileDemo) Name() string { return "turnstile-test" }

func (d turnstileDemo) Run(ctx context.Context, s *Session) error {
	log := s.logger().With(zap.String("site", d.Name()))

	log.Info("Abrindo página de teste...", zap.String("url", demoURL))
	resp, err := s.Page.Navigate(ctx, demoURL)
	if err != nil {
		return err
	}
	s.ClearChallenge(ctx, resp)

	sleep := d.sleep
	if sleep == nil {
		sleep = captcha.SleepContext
	}
	for polls := int(demoVerifyWindow / demoPollInterval); polls > 0; polls-- {
		found, err := s.Page.Exists(ctx, demoMarker)
		if err == nil && found {
			log.Info("✔️ Página de teste liberada")
			return nil
		}
		if err := sleep(ctx, demoPollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s não apareceu", ErrUnexpectedPage, demoMarker)
}
