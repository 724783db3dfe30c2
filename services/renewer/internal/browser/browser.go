package browser

import (
	"context"
	"fmt"
	"os"

	"github.com/bakomon/renewal/pkg/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

const profilePrefix = "renew_profile_"

// Session é um navegador com perfil temporário e uma página stealth pronta.
type Session struct {
	Browser *rod.Browser
	Page    *rod.Page

	profileDir string
	logger     *zap.Logger
}

// Launch sobe o Chrome com um perfil novo dentro de cfg.StateDir. O perfil
// é apagado em Close; se o processo morrer antes, o sweeper recolhe.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	profileDir, err := os.MkdirTemp(cfg.StateDir, profilePrefix)
	if err != nil {
		return nil, fmt.Errorf("erro criando perfil temporário: %w", err)
	}

	l := launcher.New().
		Context(ctx).
		Bin(binPath(cfg)).
		UserDataDir(profileDir).
		Leakless(false).
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("start-maximized")

	if cfg.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}
	if cfg.Proxy.URL != "" {
		l = l.Proxy(cfg.Proxy.URL)
	}

	u, err := l.Launch()
	if err != nil {
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("erro ao iniciar browser: %w", err)
	}

	// sem emulação de device: a janela maximizada define o viewport
	b := rod.New().ControlURL(u).NoDefaultDevice()
	if err := b.Connect(); err != nil {
		l.Kill()
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("erro conectando no browser: %w", err)
	}

	s := &Session{Browser: b, profileDir: profileDir, logger: logger}

	if cfg.Proxy.Username != "" {
		go s.handleProxyAuth(ctx, cfg.Proxy.Username, cfg.Proxy.Password)
	}

	// Monitor para debug remoto
	if cfg.MonitorPort != "" {
		go b.ServeMonitor(cfg.MonitorPort)
		logger.Info("[Browser] monitor ativo", zap.String("addr", cfg.MonitorPort))
	}

	page, err := stealth.Page(b)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("erro criando pagina stealth: %w", err)
	}
	s.Page = page

	logger.Info("[Browser] iniciado", zap.String("profile", profileDir), zap.Bool("headless", cfg.Headless))
	return s, nil
}

// binPath: config, depois CHROME_PATH, depois o que o launcher achar.
func binPath(cfg config.BrowserConfig) string {
	if cfg.Bin != "" {
		return cfg.Bin
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	path, _ := launcher.LookPath()
	return path
}

// handleProxyAuth responde a cada pedido de autenticação do proxy até o
// browser fechar.
func (s *Session) handleProxyAuth(ctx context.Context, username, password string) {
	for ctx.Err() == nil {
		wait := s.Browser.HandleAuth(username, password)
		if err := wait(); err != nil {
			s.logger.Debug("[Browser] auth do proxy encerrada", zap.Error(err))
			return
		}
	}
}

// Close fecha o browser e apaga o perfil.
func (s *Session) Close() error {
	err := s.Browser.Close()
	if rmErr := os.RemoveAll(s.profileDir); rmErr != nil {
		s.logger.Warn("[Browser] erro removendo perfil", zap.String("profile", s.profileDir), zap.Error(rmErr))
	}
	return err
}
