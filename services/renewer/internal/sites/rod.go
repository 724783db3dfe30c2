package sites

import (
	"context"
	"fmt"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage implementa Page sobre a mesma página usada pelo solver.
type RodPage struct {
	page *captcha.RodPage
}

func NewRodPage(page *captcha.RodPage) *RodPage {
	return &RodPage{page: page}
}

func (p *RodPage) rod(ctx context.Context) *rod.Page {
	return p.page.Rod().Context(ctx)
}

func (p *RodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.rod(ctx).Timeout(selectorTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("elemento %s não encontrado: %w", selector, err)
	}
	return el.CancelTimeout(), nil
}

func (p *RodPage) Navigate(ctx context.Context, url string) (*captcha.Response, error) {
	return p.page.Navigate(ctx, url, navigationTimeout)
}

func (p *RodPage) Navigating(ctx context.Context, action func(ctx context.Context) error) error {
	wait := p.rod(ctx).Timeout(navigationTimeout).WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := action(ctx); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (p *RodPage) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := p.rod(ctx).Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("elemento %s não apareceu: %w", selector, err)
	}
	return nil
}

func (p *RodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.rod(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("elemento %s não apareceu: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("elemento %s não ficou visível: %w", selector, err)
	}
	return nil
}

func (p *RodPage) Type(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("erro digitando em %s: %w", selector, err)
	}
	return nil
}

func (p *RodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("erro clicando em %s: %w", selector, err)
	}
	return nil
}

func (p *RodPage) Exec(ctx context.Context, selector, js string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if _, err := el.Eval(js); err != nil {
		return fmt.Errorf("erro executando script em %s: %w", selector, err)
	}
	return nil
}

func (p *RodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *RodPage) BodyText(ctx context.Context) (string, error) {
	res, err := p.rod(ctx).Eval(`() => document.body.innerText`)
	if err != nil {
		return "", fmt.Errorf("erro lendo corpo da página: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *RodPage) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.rod(ctx).Has(selector)
	return has, err
}

func (p *RodPage) URL(ctx context.Context) (string, error) {
	info, err := p.rod(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("erro lendo url atual: %w", err)
	}
	return info.URL, nil
}
