package captcha

import (
	"context"
	"net/http"
	"time"
)

// Page é o subconjunto do navegador que o solver precisa. A implementação de
// produção é RodPage; os testes usam um fake em memória.
type Page interface {
	// Frames lista todos os contextos de navegação (documento raiz e iframes).
	Frames(ctx context.Context) ([]Frame, error)
	// Element busca o primeiro elemento que casa com o seletor, sem esperar.
	// Devolve ErrNotFound quando não existe.
	Element(ctx context.Context, selector string) (Element, error)
	// EvalBool avalia uma função JS sem argumentos e converte o resultado.
	EvalBool(ctx context.Context, js string) (bool, error)
	// WaitVisible espera até timeout pelo seletor visível.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// WaitNavigation espera a próxima navegação do frame principal chegar ao
	// DOMContentLoaded. Devolve nil quando nada navegou dentro do timeout.
	WaitNavigation(ctx context.Context, timeout time.Duration) (*Response, error)
	// Viewport devolve a largura e a altura internas da janela.
	Viewport(ctx context.Context) (width, height float64, err error)
	Pointer() Pointer
}

// Frame é um contexto de navegação.
type Frame interface {
	URL() string
	// Owner devolve o elemento <iframe> que hospeda o frame.
	Owner(ctx context.Context) (Element, error)
}

type Element interface {
	// Box é a caixa calculada pelo driver; nil quando não há layout.
	Box(ctx context.Context) (*BoundingBox, error)
	// ClientRect lê getBoundingClientRect() direto do DOM.
	ClientRect(ctx context.Context) (*BoundingBox, error)
	Value(ctx context.Context) (string, error)
}

// Pointer despacha eventos de mouse em coordenadas do viewport.
type Pointer interface {
	MoveTo(ctx context.Context, p Point) error
	Click(ctx context.Context, p Point, hold time.Duration) error
}

// Response é a resposta HTTP da navegação principal.
type Response struct {
	URL     string
	Status  int
	Headers http.Header
}

// Header lê um cabeçalho sem diferenciar maiúsculas; seguro com r nil.
func (r *Response) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// SleepFunc dorme d respeitando o cancelamento de ctx.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext é a SleepFunc padrão: um timer que respeita o cancelamento.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
