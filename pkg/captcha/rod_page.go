package captcha

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	clientRectJS = `() => {
		const r = this.getBoundingClientRect();
		return { x: r.left, y: r.top, width: r.width, height: r.height };
	}`
	viewportJS = `() => ({ w: window.innerWidth, h: window.innerHeight })`
)

// RodPage adapta uma *rod.Page para a interface Page.
type RodPage struct {
	page    *rod.Page
	pointer *rodPointer
}

func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page, pointer: &rodPointer{page: page}}
}

// Rod devolve a página original, para fluxos que precisam da API completa.
func (p *RodPage) Rod() *rod.Page {
	return p.page
}

func (p *RodPage) Frames(ctx context.Context) ([]Frame, error) {
	tree, err := proto.PageGetFrameTree{}.Call(p.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: erro lendo árvore de frames: %w", ErrDriverGone, err)
	}

	var frames []Frame
	var walk func(node *proto.PageFrameTree)
	walk = func(node *proto.PageFrameTree) {
		if node == nil || node.Frame == nil {
			return
		}
		frames = append(frames, &rodFrame{page: p.page, id: node.Frame.ID, url: node.Frame.URL})
		for _, child := range node.ChildFrames {
			walk(child)
		}
	}
	walk(tree.FrameTree)
	return frames, nil
}

func (p *RodPage) Element(ctx context.Context, selector string) (Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("erro buscando %s: %w", selector, err)
	}
	if !has {
		return nil, ErrNotFound
	}
	return &rodElement{el: el}, nil
}

func (p *RodPage) EvalBool(ctx context.Context, js string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *RodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	el, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return false, nil
	}
	if err := el.WaitVisible(); err != nil {
		return false, nil
	}
	return true, nil
}

// WaitNavigation acompanha a resposta do documento principal até o
// DOMContentLoaded seguinte.
func (p *RodPage) WaitNavigation(ctx context.Context, timeout time.Duration) (*Response, error) {
	var (
		resp   *Response
		loaded bool
	)
	wait := p.page.Context(ctx).Timeout(timeout).EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
				return
			}
			if p.page.FrameID != "" && e.FrameID != p.page.FrameID {
				return
			}
			resp = toResponse(e.Response)
		},
		func(e *proto.PageDomContentEventFired) bool {
			loaded = true
			return true
		},
	)
	wait()

	if !loaded {
		return nil, nil
	}
	return resp, nil
}

// Navigate abre url e devolve a resposta do documento principal.
func (p *RodPage) Navigate(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	var resp *Response
	wait := p.page.Context(ctx).Timeout(timeout).EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		resp = toResponse(e.Response)
		return true
	})

	if err := p.page.Context(ctx).Timeout(timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("erro navegando para %s: %w", url, err)
	}
	wait()
	_ = p.page.Context(ctx).Timeout(timeout).WaitLoad()
	return resp, nil
}

func (p *RodPage) Viewport(ctx context.Context) (float64, float64, error) {
	res, err := p.page.Context(ctx).Eval(viewportJS)
	if err != nil {
		return 0, 0, err
	}
	return res.Value.Get("w").Num(), res.Value.Get("h").Num(), nil
}

func (p *RodPage) Pointer() Pointer {
	return p.pointer
}

func toResponse(r *proto.NetworkResponse) *Response {
	headers := make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		headers.Set(k, v.Str())
	}
	return &Response{URL: r.URL, Status: r.Status, Headers: headers}
}

type rodFrame struct {
	page *rod.Page
	id   proto.PageFrameID
	url  string
}

func (f *rodFrame) URL() string {
	return f.url
}

func (f *rodFrame) Owner(ctx context.Context) (Element, error) {
	page := f.page.Context(ctx)
	owner, err := proto.DOMGetFrameOwner{FrameID: f.id}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("erro buscando dono do frame: %w", err)
	}
	el, err := page.ElementFromNode(&proto.DOMNode{BackendNodeID: owner.BackendNodeID})
	if err != nil {
		return nil, fmt.Errorf("erro resolvendo nó do frame: %w", err)
	}
	return &rodElement{el: el}, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Box(ctx context.Context) (*BoundingBox, error) {
	shape, err := e.el.Context(ctx).Shape()
	if err != nil {
		return nil, err
	}
	rect := shape.Box()
	if rect == nil {
		return nil, nil
	}
	return &BoundingBox{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (e *rodElement) ClientRect(ctx context.Context) (*BoundingBox, error) {
	res, err := e.el.Context(ctx).Eval(clientRectJS)
	if err != nil {
		return nil, err
	}
	v := res.Value
	return &BoundingBox{
		X:      v.Get("x").Num(),
		Y:      v.Get("y").Num(),
		Width:  v.Get("width").Num(),
		Height: v.Get("height").Num(),
	}, nil
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

type rodPointer struct {
	page *rod.Page
}

func (p *rodPointer) MoveTo(ctx context.Context, pt Point) error {
	return p.page.Mouse.MoveLinear(proto.Point{X: pt.X, Y: pt.Y}, 1)
}

func (p *rodPointer) Click(ctx context.Context, pt Point, hold time.Duration) error {
	if err := p.page.Mouse.MoveLinear(proto.Point{X: pt.X, Y: pt.Y}, 1); err != nil {
		return fmt.Errorf("erro movendo mouse: %w", err)
	}
	if err := p.page.Mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("erro pressionando mouse: %w", err)
	}
	// solta o botão mesmo se o contexto for cancelado durante o hold
	_ = SleepContext(ctx, hold)
	if err := p.page.Mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("erro soltando mouse: %w", err)
	}
	return nil
}
