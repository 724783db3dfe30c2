package sites

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"go.uber.org/zap"
)

const (
	navigationTimeout = 60 * time.Second
	selectorTimeout   = 30 * time.Second
	challengeAttempts = 3
)

var (
	ErrMissingCredential = errors.New("credencial ausente")
	ErrUnexpectedPage    = errors.New("página inesperada")
	ErrRenewalRejected   = errors.New("renovação recusada")
)

// Site é o roteiro de login/renovação de um provedor.
type Site interface {
	Name() string
	Run(ctx context.Context, s *Session) error
}

// Page é o que os roteiros precisam do navegador.
type Page interface {
	// Navigate abre url e devolve a resposta do documento principal.
	Navigate(ctx context.Context, url string) (*captcha.Response, error)
	// Navigating roda action e espera o DOMContentLoaded da navegação que
	// ela dispara. Sem navegação até o timeout, segue sem erro.
	Navigating(ctx context.Context, action func(ctx context.Context) error) error
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// Exec roda js (uma função) tendo o elemento como this.
	Exec(ctx context.Context, selector, js string) error
	Text(ctx context.Context, selector string) (string, error)
	BodyText(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	URL(ctx context.Context) (string, error)
}

// Challenger é a parte do captcha.Solver usada pelos roteiros.
type Challenger interface {
	SolveChallenge(ctx context.Context, resp *captcha.Response, maxAttempts int) captcha.ChallengeOutcome
	Solve(ctx context.Context, settings captcha.Settings) (captcha.Outcome, error)
}

// Session junta o que um roteiro usa durante uma execução.
type Session struct {
	Page     Page
	Solver   Challenger
	Settings captcha.Settings
	Logger   *zap.Logger
	// Env lê segredos; nil usa os.Getenv.
	Env func(string) string
	// OnChallenge é chamado quando um desafio de página inteira aparece.
	OnChallenge func()
}

func (s *Session) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Credential lê uma variável de ambiente obrigatória.
func (s *Session) Credential(name string) (string, error) {
	getenv := s.Env
	if getenv == nil {
		getenv = os.Getenv
	}
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	return v, nil
}

// PasswordVar é a variável com a senha do site: HIDENCLOUD_PASSWORD etc.
func PasswordVar(site string) string {
	return strings.ToUpper(strings.ReplaceAll(site, "-", "_")) + "_PASSWORD"
}

// login lê EMAIL e a senha do site.
func (s *Session) login(site string) (email, password string, err error) {
	if email, err = s.Credential("EMAIL"); err != nil {
		return "", "", err
	}
	if password, err = s.Credential(PasswordVar(site)); err != nil {
		return "", "", err
	}
	return email, password, nil
}

// ClearChallenge trata um eventual desafio de página inteira e devolve a
// resposta mais recente. Desafio que persiste só gera aviso: o roteiro
// segue e falha adiante se a página não mudar.
func (s *Session) ClearChallenge(ctx context.Context, resp *captcha.Response) *captcha.Response {
	out := s.Solver.SolveChallenge(ctx, resp, challengeAttempts)
	if out.Attempts > 0 && s.OnChallenge != nil {
		s.OnChallenge()
	}
	if out.Detected {
		s.logger().Warn("[Challenge] desafio continua detectado",
			zap.Int("attempts", out.Attempts), zap.Stringer("reason", out.Reason))
	}
	return out.Response
}

// SolveWidget resolve o widget embutido na página atual. Só falha do
// driver vira erro.
func (s *Session) SolveWidget(ctx context.Context) error {
	out, err := s.Solver.Solve(ctx, s.Settings)
	if err != nil {
		return fmt.Errorf("erro resolvendo turnstile: %w", err)
	}
	if !out.Solved() && !out.Skipped {
		s.logger().Warn("[Turnstile] widget não resolvido", zap.Stringer("state", out.State), zap.Int("attempts", out.Attempts))
	}
	return nil
}

// typeInto espera o campo aparecer e digita.
func (s *Session) typeInto(ctx context.Context, selector, text string) error {
	if err := s.Page.WaitVisible(ctx, selector, selectorTimeout); err != nil {
		return err
	}
	return s.Page.Type(ctx, selector, text)
}

// clickAndWait clica e espera a navegação resultante.
func (s *Session) clickAndWait(ctx context.Context, selector string) error {
	return s.Page.Navigating(ctx, func(ctx context.Context) error {
		return s.Page.Click(ctx, selector)
	})
}

// expectURL falha se a página atual não começa com prefix.
func (s *Session) expectURL(ctx context.Context, prefix string) error {
	current, err := s.Page.URL(ctx)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(current, prefix) {
		return fmt.Errorf("%w: esperava %s, está em %s", ErrUnexpectedPage, prefix, current)
	}
	return nil
}
