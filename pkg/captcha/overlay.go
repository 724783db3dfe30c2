package captcha

import (
	"context"

	"github.com/go-rod/rod"
)

// Overlay desenha o ponteiro sintético na página para depuração visual.
// Todas as operações são melhor esforço.
type Overlay interface {
	Enable(ctx context.Context)
	Update(ctx context.Context, p Point)
	Click(ctx context.Context, p Point)
	Disable(ctx context.Context)
}

const overlayEnableJS = `() => {
	if (window.__renewPointer) return;
	const dot = document.createElement('div');
	dot.id = '__renew_pointer';
	Object.assign(dot.style, {
		position: 'fixed', width: '12px', height: '12px', borderRadius: '50%',
		background: 'rgba(255,0,80,.85)', pointerEvents: 'none',
		zIndex: 2147483647, transform: 'translate(-50%,-50%)', left: '-20px', top: '-20px',
	});
	const canvas = document.createElement('canvas');
	canvas.id = '__renew_trail';
	canvas.width = innerWidth;
	canvas.height = innerHeight;
	Object.assign(canvas.style, {
		position: 'fixed', left: 0, top: 0, pointerEvents: 'none', zIndex: 2147483646,
	});
	document.documentElement.append(canvas, dot);
	window.__renewPointer = { dot, ctx: canvas.getContext('2d'), last: null };
}`

const overlayUpdateJS = `(x, y) => {
	const p = window.__renewPointer;
	if (!p) return;
	p.dot.style.left = x + 'px';
	p.dot.style.top = y + 'px';
	if (p.last) {
		p.ctx.strokeStyle = 'rgba(255,0,80,.5)';
		p.ctx.lineWidth = 2;
		p.ctx.beginPath();
		p.ctx.moveTo(p.last.x, p.last.y);
		p.ctx.lineTo(x, y);
		p.ctx.stroke();
	}
	p.last = { x, y };
}`

const overlayClickJS = `(x, y) => {
	const ring = document.createElement('div');
	Object.assign(ring.style, {
		position: 'fixed', left: x + 'px', top: y + 'px', width: '8px', height: '8px',
		border: '2px solid rgba(255,0,80,.9)', borderRadius: '50%', pointerEvents: 'none',
		zIndex: 2147483647, transform: 'translate(-50%,-50%) scale(1)',
		transition: 'transform 550ms ease-out, opacity 550ms ease-out',
	});
	document.documentElement.append(ring);
	requestAnimationFrame(() => {
		ring.style.transform = 'translate(-50%,-50%) scale(5)';
		ring.style.opacity = '0';
	});
	setTimeout(() => ring.remove(), 550);
}`

const overlayDisableJS = `() => {
	const p = window.__renewPointer;
	if (!p) return;
	p.dot.remove();
	p.ctx.canvas.remove();
	delete window.__renewPointer;
}`

// RodOverlay injeta um marcador e um rastro na página via rod.
type RodOverlay struct {
	page *rod.Page
}

func NewRodOverlay(page *rod.Page) *RodOverlay {
	return &RodOverlay{page: page}
}

func (o *RodOverlay) Enable(ctx context.Context) {
	_, _ = o.page.Context(ctx).Eval(overlayEnableJS)
}

func (o *RodOverlay) Update(ctx context.Context, p Point) {
	_, _ = o.page.Context(ctx).Eval(overlayUpdateJS, p.X, p.Y)
}

func (o *RodOverlay) Click(ctx context.Context, p Point) {
	_, _ = o.page.Context(ctx).Eval(overlayClickJS, p.X, p.Y)
}

func (o *RodOverlay) Disable(ctx context.Context) {
	_, _ = o.page.Context(ctx).Eval(overlayDisableJS)
}
