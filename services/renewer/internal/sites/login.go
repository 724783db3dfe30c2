package sites

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// loginFlow cobre os provedores em que manter a conta ativa é só entrar no
// painel e confirmar que a sessão abriu.
type loginFlow struct {
	name     string
	url      string
	email    string
	password string
	submit   string
	// marker só existe com a sessão aberta
	marker string
	// check opcional, roda depois do marker
	check func(ctx context.Context, s *Session) error
}

func (f loginFlow) Name() string { return f.name }

func (f loginFlow) Run(ctx context.Context, s *Session) error {
	email, password, err := s.login(f.name)
	if err != nil {
		return err
	}
	log := s.logger().With(zap.String("site", f.name))

	log.Info("Abrindo painel...", zap.String("url", f.url))
	if _, err := s.Page.Navigate(ctx, f.url); err != nil {
		return err
	}

	log.Info("Fazendo login...")
	if err := s.typeInto(ctx, f.email, email); err != nil {
		return err
	}
	if err := s.typeInto(ctx, f.password, password); err != nil {
		return err
	}
	if err := s.clickAndWait(ctx, f.submit); err != nil {
		return err
	}
	if err := s.expectURL(ctx, f.url); err != nil {
		return err
	}

	if err := s.Page.WaitPresent(ctx, f.marker, selectorTimeout); err != nil {
		return fmt.Errorf("sessão não confirmada: %w", err)
	}
	if f.check != nil {
		if err := f.check(ctx, s); err != nil {
			return err
		}
	}
	log.Info("✔️ Login verificado")
	return nil
}

func alwaysdata() loginFlow {
	return loginFlow{
		name:     "alwaysdata",
		url:      "https://admin.alwaysdata.com/site/",
		email:    "input#id_login",
		password: "input#id_password",
		submit:   `button[type="submit"]`,
		marker:   `.user-menu a[href*="/logout/"]`,
	}
}

func heliohost() loginFlow {
	return loginFlow{
		name:     "heliohost",
		url:      "https://heliohost.org/dashboard/",
		email:    `#login_form input[name="email"]`,
		password: `#login_form input[name="password"]`,
		submit:   `#login_form input[type="submit"]`,
		marker:   `#login-content button[onclick*="/logout/"]`,
	}
}

func webhostmost() loginFlow {
	return loginFlow{
		name:     "webhostmost",
		url:      "https://client.webhostmost.com/clientarea.php",
		email:    "input#inputEmail",
		password: "input#inputPassword",
		submit:   `button[type="submit"]`,
		marker:   "#custom-timer",
		check:    suspensionTimer,
	}
}

// suspensionTimer confere o contador que só aparece em contas ativas.
func suspensionTimer(ctx context.Context, s *Session) error {
	if err := s.Page.WaitVisible(ctx, "#custom-timer", selectorTimeout); err != nil {
		return err
	}
	text, err := s.Page.Text(ctx, "#custom-timer")
	if err != nil {
		return err
	}
	if !strings.Contains(text, "Time until suspension") {
		return fmt.Errorf("%w: #custom-timer sem o texto esperado (%q)", ErrUnexpectedPage, text)
	}
	s.logger().Info("Contador de suspensão", zap.String("text", strings.TrimSpace(text)))
	return nil
}

// sprinthost pede o email e a senha em telas separadas.
type sprinthost struct{}

const sprinthostURL = "https://cp.sprinthost.ru/main/index"

func (sprinthost) Name() string { return "sprinthost" }

func (sp sprinthost) Run(ctx context.Context, s *Session) error {
	email, password, err := s.login(sp.Name())
	if err != nil {
		return err
	}
	log := s.logger().With(zap.String("site", sp.Name()))

	log.Info("Abrindo painel...", zap.String("url", sprinthostURL))
	if _, err := s.Page.Navigate(ctx, sprinthostURL); err != nil {
		return err
	}

	if err := s.typeInto(ctx, ".form-sign-in--login input.ym-record-keys", email); err != nil {
		return err
	}
	if err := s.Page.Click(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	if err := s.typeInto(ctx, `.form-sign-in--password input[type="password"]`, password); err != nil {
		return err
	}
	if err := s.clickAndWait(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	if err := s.expectURL(ctx, sprinthostURL); err != nil {
		return err
	}

	if err := s.Page.WaitPresent(ctx, `a[href*="/customer/package/change"]`, selectorTimeout); err != nil {
		return fmt.Errorf("sessão não confirmada: %w", err)
	}
	log.Info("✔️ Login verificado")
	return nil
}
