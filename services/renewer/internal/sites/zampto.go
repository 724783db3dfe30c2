package sites

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// zamptoRenewal é o JSON devolvido pela URL de renovação.
type zamptoRenewal struct {
	Success     bool   `json:"success"`
	NextRenewal string `json:"nextRenewal"`
}

// zampto renova abrindo a URL com renew=true; depois do login o painel
// volta para ela e responde JSON.
type zampto struct{}

func (zampto) Name() string { return "zampto" }

func (z zampto) Run(ctx context.Context, s *Session) error {
	email, password, err := s.login(z.Name())
	if err != nil {
		return err
	}
	serverID, err := s.Credential("ZAMPTO_SERVER")
	if err != nil {
		return err
	}
	log := s.logger().With(zap.String("site", z.Name()))

	renewURL := fmt.Sprintf("https://dash.zampto.net/server?id=%s&renew=true", serverID)
	log.Info("Abrindo página de renovação...", zap.String("url", renewURL))
	if _, err := s.Page.Navigate(ctx, renewURL); err != nil {
		return err
	}

	if err := s.typeInto(ctx, `input[name="identifier"]`, email); err != nil {
		return err
	}
	if err := s.Page.Click(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	if err := s.typeInto(ctx, `input[name="password"]`, password); err != nil {
		return err
	}
	if err := s.clickAndWait(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	if err := s.expectURL(ctx, renewURL); err != nil {
		return err
	}

	body, err := s.Page.BodyText(ctx)
	if err != nil {
		return err
	}
	res, err := parseZamptoRenewal(body)
	if err != nil {
		return err
	}
	log.Info("✔️ Renovado", zap.String("next_renewal", res.NextRenewal))
	return nil
}

func parseZamptoRenewal(body string) (zamptoRenewal, error) {
	var res zamptoRenewal
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return res, fmt.Errorf("resposta de renovação não é JSON: %w", err)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: success=false", ErrRenewalRejected)
	}
	return res, nil
}
