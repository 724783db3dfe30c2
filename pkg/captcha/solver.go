package captcha

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	initialSettle       = 1 * time.Second
	attemptSettle       = 2500 * time.Millisecond
	locateRetryDelay    = 2500 * time.Millisecond
	verifyInterval      = 250 * time.Millisecond
	verifyTimeout       = 5 * time.Second
	successMarkerWait   = 10 * time.Second
	successMarkerSelect = `#challenge-success-text`

	// área clicável dentro do iframe: margem esquerda e faixa da marca
	leftMarginRatio = 0.054
	brandingRatio   = 0.404
	clickPad        = 30.0
	clickGap        = 4.0
)

// State é o estado da máquina do solver durante um Solve.
type State int

const (
	StateIdle State = iota
	StateDetect
	StateLocate
	StateMove
	StateClick
	StateVerify
	StateRetry
	StateSolved
	StateExhausted
)

var stateNames = map[State]string{
	StateIdle:      "IDLE",
	StateDetect:    "DETECT",
	StateLocate:    "LOCATE",
	StateMove:      "MOVE",
	StateClick:     "CLICK",
	StateVerify:    "VERIFY",
	StateRetry:     "RETRY",
	StateSolved:    "SOLVED",
	StateExhausted: "EXHAUSTED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lista, para cada estado, para onde ele pode ir.
var transitions = map[State][]State{
	StateIdle:   {StateDetect, StateLocate},
	StateDetect: {StateLocate, StateSolved},
	StateLocate: {StateMove, StateRetry},
	StateMove:   {StateClick},
	StateClick:  {StateVerify},
	StateVerify: {StateSolved, StateRetry},
	StateRetry:  {StateDetect, StateLocate, StateSolved, StateExhausted},
}

// CanTransition diz se from -> to é uma transição válida.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Settings configura uma chamada de Solve.
type Settings struct {
	SolveDelayEnabled bool
	SolveDelay        time.Duration
	MaxAttempts       int
	ChallengePage     bool
	// Response é a resposta da navegação que trouxe o desafio; o DETECT de
	// cada tentativa olha o cabeçalho dela além do DOM.
	Response *Response
}

func DefaultSettings() Settings {
	return Settings{
		SolveDelayEnabled: true,
		SolveDelay:        5 * time.Second,
		MaxAttempts:       3,
	}
}

// Outcome resume uma chamada de Solve.
type Outcome struct {
	State    State
	Attempts int
	// Skipped indica que outra chamada da mesma sessão já estava em andamento.
	Skipped bool
}

func (o Outcome) Solved() bool {
	return o.State == StateSolved
}

// Observer recebe as transições e o resultado final de cada Solve.
type Observer interface {
	StateChanged(from, to State)
	SolveFinished(outcome Outcome)
}

// Solver resolve o widget de uma página. Cada instância representa uma
// sessão; chamadas concorrentes na mesma sessão viram no-op.
type Solver struct {
	page     Page
	logger   *zap.Logger
	rng      *rand.Rand
	sleep    SleepFunc
	now      func() time.Time
	motion   *MotionGenerator
	locator  *FrameLocator
	detector *Detector
	checker  *SolvedChecker
	observer Observer
	overlay  Overlay
	locks    *SessionLocks
	key      string

	motionCfg MotionConfig
	defaults  Settings
	// última posição conhecida do ponteiro; só tocada com a trava da sessão
	lastPointer *Point
}

type Option func(*Solver)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

// WithRand fixa a fonte de aleatoriedade (útil para trajetos determinísticos).
func WithRand(rng *rand.Rand) Option {
	return func(s *Solver) { s.rng = rng }
}

func WithSleep(sleep SleepFunc) Option {
	return func(s *Solver) { s.sleep = sleep }
}

// WithClock troca o relógio usado nos prazos de verificação.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) { s.now = now }
}

func WithObserver(observer Observer) Option {
	return func(s *Solver) { s.observer = observer }
}

func WithOverlay(overlay Overlay) Option {
	return func(s *Solver) { s.overlay = overlay }
}

func WithMotionConfig(cfg MotionConfig) Option {
	return func(s *Solver) { s.motionCfg = cfg }
}

// WithDefaults troca as configurações usadas por SolveChallenge.
func WithDefaults(settings Settings) Option {
	return func(s *Solver) { s.defaults = settings }
}

// WithSession compartilha a tabela de travas e a chave com outros solvers.
// Usar a mesma chave em todos serializa as sessões do processo inteiro.
func WithSession(locks *SessionLocks, key string) Option {
	return func(s *Solver) {
		s.locks = locks
		s.key = key
	}
}

func NewSolver(page Page, opts ...Option) *Solver {
	s := &Solver{
		page:      page,
		sleep:     SleepContext,
		now:       time.Now,
		motionCfg: DefaultMotionConfig(),
		defaults:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.rng == nil {
		s.rng = newRand()
	}
	if s.locks == nil {
		s.locks = defaultLocks
	}
	if s.key == "" {
		s.key = uuid.NewString()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	s.motion = NewMotionGenerator(s.rng, s.motionCfg)
	s.motion.sleep = s.sleep
	s.locator = NewFrameLocator(s.logger)
	s.detector = NewDetector(s.logger)
	s.checker = NewSolvedChecker(s.locator, s.logger)
	return s
}

// Session devolve a chave de trava da sessão.
func (s *Solver) Session() string {
	return s.key
}

// Solve roda a máquina de estados até SOLVED ou EXHAUSTED. Erros só são
// devolvidos para falhas do driver (clique, navegador caído) ou
// cancelamento do contexto.
func (s *Solver) Solve(ctx context.Context, settings Settings) (Outcome, error) {
	if !s.locks.TryAcquire(s.key) {
		s.logger.Debug("[Turnstile] solve já em andamento nesta sessão", zap.String("session", s.key))
		return Outcome{State: StateIdle, Skipped: true}, nil
	}
	defer s.locks.Release(s.key)

	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultSettings().MaxAttempts
	}

	if s.overlay != nil {
		s.overlay.Enable(ctx)
		defer s.overlay.Disable(ctx)
	}

	run := &solveRun{Solver: s, settings: settings, state: StateIdle}
	err := run.execute(ctx)
	outcome := Outcome{State: run.state, Attempts: run.attempts}
	s.observer.SolveFinished(outcome)

	s.logger.Info("[Turnstile] solve finalizado",
		zap.Stringer("state", outcome.State),
		zap.Int("attempts", outcome.Attempts),
		zap.Bool("challenge_page", settings.ChallengePage),
	)
	return outcome, err
}

// solveRun guarda o estado transitório de uma chamada.
type solveRun struct {
	*Solver
	settings Settings
	state    State
	attempts int
}

func (r *solveRun) transition(to State) {
	if !CanTransition(r.state, to) {
		r.logger.Warn("[Turnstile] transição inesperada",
			zap.Stringer("from", r.state), zap.Stringer("to", to))
	}
	r.observer.StateChanged(r.state, to)
	r.state = to
}

func (r *solveRun) execute(ctx context.Context) error {
	if err := r.sleep(ctx, initialSettle); err != nil {
		return err
	}

	for attempt := 1; attempt <= r.settings.MaxAttempts; attempt++ {
		r.attempts = attempt

		if r.settings.SolveDelayEnabled && r.settings.SolveDelay > 0 {
			if err := r.sleep(ctx, r.settings.SolveDelay); err != nil {
				return err
			}
		}
		if err := r.sleep(ctx, attemptSettle); err != nil {
			return err
		}

		if r.settings.ChallengePage {
			r.transition(StateDetect)
			if res := r.detector.Detect(ctx, r.page, r.settings.Response); !res.Detected {
				r.logger.Info("[Turnstile] desafio de página não está mais presente")
				r.transition(StateSolved)
				return nil
			}
		}

		r.transition(StateLocate)
		box, found, err := r.locate(ctx)
		if err != nil {
			return err
		}
		if !found {
			r.logger.Warn("[Turnstile] ⚠️ iframe do widget não encontrado", zap.Int("attempt", attempt))
			r.transition(StateRetry)
			continue
		}

		r.transition(StateMove)
		target := ClickPoint(box, r.rng)
		if err := r.moveTo(ctx, target); err != nil {
			return err
		}

		r.transition(StateClick)
		hold := time.Duration(30+r.rng.IntN(30)) * time.Millisecond
		if r.overlay != nil {
			r.overlay.Click(ctx, target)
		}
		if err := r.page.Pointer().Click(ctx, target, hold); err != nil {
			return fmt.Errorf("erro clicando no widget: %w", err)
		}

		r.transition(StateVerify)
		solved, err := r.verify(ctx)
		if err != nil {
			return err
		}
		if solved {
			r.transition(StateSolved)
			return nil
		}

		r.logger.Warn("[Turnstile] ⚠️ tentativa falhou", zap.Int("attempt", attempt), zap.Int("max", r.settings.MaxAttempts))
		r.transition(StateRetry)
	}

	if r.settings.ChallengePage {
		visible, err := r.page.WaitVisible(ctx, successMarkerSelect, successMarkerWait)
		if err == nil && visible {
			r.logger.Info("[Turnstile] ✅ marcador de sucesso do desafio visível")
			r.transition(StateSolved)
			return nil
		}
	}

	r.transition(StateExhausted)
	return nil
}

// locate tenta achar o iframe até MaxAttempts vezes.
func (r *solveRun) locate(ctx context.Context) (BoundingBox, bool, error) {
	for try := 1; try <= r.settings.MaxAttempts; try++ {
		box, found, err := r.locator.Locate(ctx, r.page)
		if err != nil {
			return BoundingBox{}, false, err
		}
		if found {
			return box, true, nil
		}
		if err := r.sleep(ctx, locateRetryDelay); err != nil {
			return BoundingBox{}, false, err
		}
	}
	return BoundingBox{}, false, nil
}

func (r *solveRun) moveTo(ctx context.Context, target Point) error {
	from := r.startPoint(ctx)
	var onStep func(Point)
	if r.overlay != nil {
		onStep = func(p Point) { r.overlay.Update(ctx, p) }
	}
	if err := r.motion.MoveAlong(ctx, r.page.Pointer(), from, target, onStep); err != nil {
		return err
	}
	r.lastPointer = &target
	return nil
}

// startPoint usa a última posição conhecida ou sintetiza uma a partir do
// viewport.
func (r *solveRun) startPoint(ctx context.Context) Point {
	if r.lastPointer != nil {
		return *r.lastPointer
	}
	w, h, err := r.page.Viewport(ctx)
	if err != nil {
		r.logger.Debug("[Turnstile] viewport indisponível, usando fallback", zap.Error(err))
		w, h = 0, 0
	}
	return r.motion.StartPoint(w, h)
}

// verify consulta o estado a cada 250ms até o prazo de 5s. O prazo é de
// relógio: cada consulta pode demorar segundos no navegador real.
func (r *solveRun) verify(ctx context.Context) (bool, error) {
	deadline := r.now().Add(verifyTimeout)
	for r.now().Before(deadline) {
		if r.checker.IsSolved(ctx, r.page, r.settings.ChallengePage) {
			return true, nil
		}
		if err := r.sleep(ctx, verifyInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// ClickPoint sorteia o ponto de clique dentro da área da caixa de seleção,
// fora da margem esquerda e da faixa da marca, com um pequeno jitter.
func ClickPoint(box BoundingBox, rng *rand.Rand) Point {
	left := math.Floor(box.Width * leftMarginRatio)
	right := math.Floor(box.Width*brandingRatio) + left
	span := box.Width - left - right + 1
	if span < 1 {
		span = 1
	}
	offsetX := left + math.Floor(rng.Float64()*span)

	jitterRange := math.Max(clickPad-2*clickGap, 0)
	jx := math.Floor((rng.Float64() - 0.5) * 0.5 * jitterRange)
	jy := math.Floor((rng.Float64() - 0.5) * 0.5 * jitterRange)

	return Point{
		X: math.Floor(box.X + offsetX + math.Floor(clickPad/2) + jx),
		Y: math.Floor(box.Y + math.Floor(box.Height/2) + jy),
	}
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) SolveFinished(Outcome)     {}
