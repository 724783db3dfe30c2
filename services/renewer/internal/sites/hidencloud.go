package sites

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	paymentAlertTimeout = 90 * time.Second
	paymentDoneText     = "payment has been completed"
)

// hidencloud renova o serviço gratuito: o painel fica atrás de um desafio
// e de um widget, a renovação gera uma fatura zerada que precisa ser paga.
type hidencloud struct{}

func (hidencloud) Name() string { return "hidencloud" }

func (h hidencloud) Run(ctx context.Context, s *Session) error {
	email, password, err := s.login(h.Name())
	if err != nil {
		return err
	}
	serverID, err := s.Credential("HIDENCLOUD_SERVER")
	if err != nil {
		return err
	}
	log := s.logger().With(zap.String("site", h.Name()))

	manageURL := fmt.Sprintf("https://dash.hidencloud.com/service/%s/manage", serverID)
	log.Info("Abrindo página de gerenciamento...", zap.String("url", manageURL))
	resp, err := s.Page.Navigate(ctx, manageURL)
	if err != nil {
		return err
	}
	s.ClearChallenge(ctx, resp)

	if err := s.SolveWidget(ctx); err != nil {
		return err
	}

	// sem sessão o painel redireciona para o login
	log.Info("Fazendo login...")
	if err := s.typeInto(ctx, "input#username", email); err != nil {
		return err
	}
	if err := s.typeInto(ctx, "input#password", password); err != nil {
		return err
	}
	if err := s.clickAndWait(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	if err := s.expectURL(ctx, manageURL); err != nil {
		return err
	}

	// o bloco de renovação vem escondido
	renewBlock := fmt.Sprintf("#renewService-%s", serverID)
	if err := s.Page.WaitPresent(ctx, renewBlock, selectorTimeout); err != nil {
		return err
	}
	if err := s.Page.Exec(ctx, renewBlock, `() => this.classList.remove('hidden')`); err != nil {
		return err
	}

	log.Info("Enviando formulário de renovação...")
	renewForm := fmt.Sprintf(`form[action$="/%s/renew"]`, serverID)
	if err := s.submitAndWait(ctx, renewForm); err != nil {
		return err
	}

	current, err := s.Page.URL(ctx)
	if err != nil {
		return err
	}
	log.Info("Redirecionado após renovação", zap.String("url", current))
	if !strings.Contains(current, "/payment/invoice/") {
		return fmt.Errorf("%w: renovação não levou à fatura (%s)", ErrUnexpectedPage, current)
	}

	log.Info("Pagando fatura...")
	if err := s.submitAndWait(ctx, `form[action$="/pay"]`); err != nil {
		return err
	}
	return h.confirmPayment(ctx, s, log)
}

func (hidencloud) confirmPayment(ctx context.Context, s *Session, log *zap.Logger) error {
	const alert = `div[role="alert"]`
	if err := s.Page.WaitVisible(ctx, alert, paymentAlertTimeout); err != nil {
		return err
	}
	text, err := s.Page.Text(ctx, alert)
	if err != nil {
		return err
	}
	current, err := s.Page.URL(ctx)
	if err != nil {
		return err
	}
	log.Info("Alerta de pagamento", zap.String("text", strings.TrimSpace(text)), zap.String("url", current))

	if strings.Contains(text, paymentDoneText) || strings.Contains(current, "/dashboard") {
		return nil
	}
	return fmt.Errorf("%w: pagamento sem mensagem de sucesso", ErrRenewalRejected)
}

// submitAndWait espera o formulário aparecer, envia via JS e espera a
// navegação.
func (s *Session) submitAndWait(ctx context.Context, form string) error {
	if err := s.Page.WaitVisible(ctx, form, selectorTimeout); err != nil {
		return err
	}
	return s.Page.Navigating(ctx, func(ctx context.Context) error {
		return s.Page.Exec(ctx, form, `() => this.submit()`)
	})
}
