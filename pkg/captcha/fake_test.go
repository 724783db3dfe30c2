package captcha

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

type fakeElement struct {
	mu      sync.Mutex
	box     *BoundingBox
	boxErr  error
	rect    *BoundingBox
	rectErr error
	value   string
}

func (e *fakeElement) Box(context.Context) (*BoundingBox, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.box, e.boxErr
}

func (e *fakeElement) ClientRect(context.Context) (*BoundingBox, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rectErr != nil {
		return nil, e.rectErr
	}
	if e.rect == nil {
		return nil, errors.New("sem retângulo")
	}
	return e.rect, nil
}

func (e *fakeElement) Value(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, nil
}

func (e *fakeElement) setValue(v string) {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
}

type fakeFrame struct {
	url      string
	owner    Element
	ownerErr error
}

func (f *fakeFrame) URL() string { return f.url }

func (f *fakeFrame) Owner(context.Context) (Element, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	return f.owner, nil
}

type fakePointer struct {
	mu      sync.Mutex
	moves   []Point
	clicks  []Point
	moveErr error
	clickFn func(Point) error
}

func (p *fakePointer) MoveTo(_ context.Context, pt Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = append(p.moves, pt)
	return p.moveErr
}

func (p *fakePointer) Click(_ context.Context, pt Point, _ time.Duration) error {
	p.mu.Lock()
	p.clicks = append(p.clicks, pt)
	fn := p.clickFn
	p.mu.Unlock()
	if fn != nil {
		return fn(pt)
	}
	return nil
}

func (p *fakePointer) counts() (moves, clicks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.moves), len(p.clicks)
}

type fakePage struct {
	mu         sync.Mutex
	frames     []Frame
	framesErr  error
	elements   map[string]Element
	visible    map[string]bool
	chlOpt     bool
	evalErr    error
	width      float64
	height     float64
	nav        *Response
	navCalls   int
	frameCalls int
	pointer    *fakePointer
	// waits registra os seletores pedidos a WaitVisible; onWait simula a
	// demora do navegador
	waits  []string
	onWait func()
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: map[string]Element{},
		visible:  map[string]bool{},
		width:    1280,
		height:   720,
		pointer:  &fakePointer{},
	}
}

func (p *fakePage) Frames(context.Context) ([]Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCalls++
	return p.frames, p.framesErr
}

func (p *fakePage) Element(_ context.Context, selector string) (Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return nil, ErrNotFound
	}
	return el, nil
}

func (p *fakePage) EvalBool(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chlOpt, p.evalErr
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, selector)
	if p.onWait != nil {
		p.onWait()
	}
	return p.visible[selector], nil
}

func (p *fakePage) WaitNavigation(context.Context, time.Duration) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navCalls++
	return p.nav, nil
}

func (p *fakePage) Viewport(context.Context) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height, nil
}

func (p *fakePage) Pointer() Pointer { return p.pointer }

func (p *fakePage) setFrames(frames ...Frame) {
	p.mu.Lock()
	p.frames = frames
	p.mu.Unlock()
}

func (p *fakePage) setElement(selector string, el Element) {
	p.mu.Lock()
	p.elements[selector] = el
	p.mu.Unlock()
}

func (p *fakePage) setChlOpt(v bool) {
	p.mu.Lock()
	p.chlOpt = v
	p.mu.Unlock()
}

func widgetFrame(box BoundingBox) *fakeFrame {
	return &fakeFrame{
		url:   "https://challenges.cloudflare.com/cdn-cgi/challenge-platform/turnstile/if/ov2",
		owner: &fakeElement{box: &box},
	}
}

// recordingObserver guarda as transições na ordem.
type recordingObserver struct {
	mu       sync.Mutex
	path     []State
	outcomes []Outcome
}

func (o *recordingObserver) StateChanged(_, to State) {
	o.mu.Lock()
	o.path = append(o.path, to)
	o.mu.Unlock()
}

func (o *recordingObserver) SolveFinished(out Outcome) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, out)
	o.mu.Unlock()
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.path...)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// fakeClock é um relógio que só anda quando alguém pede.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.advance(d)
	return ctx.Err()
}

// sleepRecorder não dorme, só anota as durações pedidas.
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.calls...)
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
