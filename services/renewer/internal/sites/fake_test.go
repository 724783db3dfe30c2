package sites

import (
	"context"
	"errors"
	"time"

	"github.com/bakomon/renewal/pkg/captcha"
)

var errNoElement = errors.New("elemento não encontrado")

// fakePage simula o navegador: cada Navigating consome a próxima URL da
// fila, seletores em missing nunca aparecem.
type fakePage struct {
	url      string
	navQueue []string
	missing  map[string]bool
	texts    map[string]string
	body     string

	typed      map[string]string
	clicks     []string
	execs      []string
	navigated  []string
	navigating int
}

func newFakePage() *fakePage {
	return &fakePage{
		missing: map[string]bool{},
		texts:   map[string]string{},
		typed:   map[string]string{},
	}
}

func (p *fakePage) check(selector string) error {
	if p.missing[selector] {
		return errNoElement
	}
	return nil
}

func (p *fakePage) Navigate(_ context.Context, url string) (*captcha.Response, error) {
	p.navigated = append(p.navigated, url)
	p.url = url
	return &captcha.Response{URL: url, Status: 200}, nil
}

func (p *fakePage) Navigating(ctx context.Context, action func(ctx context.Context) error) error {
	p.navigating++
	if err := action(ctx); err != nil {
		return err
	}
	if len(p.navQueue) > 0 {
		p.url, p.navQueue = p.navQueue[0], p.navQueue[1:]
	}
	return nil
}

func (p *fakePage) WaitPresent(_ context.Context, selector string, _ time.Duration) error {
	return p.check(selector)
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	return p.check(selector)
}

func (p *fakePage) Type(_ context.Context, selector, text string) error {
	if err := p.check(selector); err != nil {
		return err
	}
	p.typed[selector] = text
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	if err := p.check(selector); err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) Exec(_ context.Context, selector, js string) error {
	if err := p.check(selector); err != nil {
		return err
	}
	p.execs = append(p.execs, selector+" "+js)
	return nil
}

func (p *fakePage) Text(_ context.Context, selector string) (string, error) {
	if err := p.check(selector); err != nil {
		return "", err
	}
	return p.texts[selector], nil
}

func (p *fakePage) BodyText(context.Context) (string, error) {
	return p.body, nil
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	return !p.missing[selector], nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	return p.url, nil
}

type fakeChallenger struct {
	challenge      captcha.ChallengeOutcome
	outcome        captcha.Outcome
	solveErr       error
	challengeCalls int
	solveCalls     int
	settings       []captcha.Settings
}

func (c *fakeChallenger) SolveChallenge(_ context.Context, resp *captcha.Response, _ int) captcha.ChallengeOutcome {
	c.challengeCalls++
	out := c.challenge
	if out.Response == nil {
		out.Response = resp
	}
	return out
}

func (c *fakeChallenger) Solve(_ context.Context, settings captcha.Settings) (captcha.Outcome, error) {
	c.solveCalls++
	c.settings = append(c.settings, settings)
	return c.outcome, c.solveErr
}

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func newSession(page *fakePage, env map[string]string) (*Session, *fakeChallenger) {
	ch := &fakeChallenger{outcome: captcha.Outcome{State: captcha.StateSolved, Attempts: 1}}
	return &Session{
		Page:     page,
		Solver:   ch,
		Settings: captcha.DefaultSettings(),
		Env:      envOf(env),
	}, ch
}

func noSleep(context.Context, time.Duration) error { return nil }
