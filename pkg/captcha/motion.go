package captcha

import (
	"context"
	"iter"
	"math"
	"math/rand/v2"
	"time"
)

const (
	minMotionSteps = 12
	maxMotionSteps = 96
	pixelsPerStep  = 6.0
)

// Step é um ponto do trajeto e a pausa a aplicar depois dele.
type Step struct {
	Point Point
	Delay time.Duration
}

// MotionConfig controla as pausas entre passos.
type MotionConfig struct {
	DwellMin time.Duration
	DwellMax time.Duration
}

func DefaultMotionConfig() MotionConfig {
	return MotionConfig{DwellMin: 4 * time.Millisecond, DwellMax: 36 * time.Millisecond}
}

// MotionGenerator gera trajetos de ponteiro com cara de humano: curva de
// Bézier com ruído nos pontos de controle, ondulação perpendicular e
// velocidade variável. O último passo cai exatamente no alvo.
type MotionGenerator struct {
	rng   *rand.Rand
	cfg   MotionConfig
	sleep SleepFunc
}

// NewMotionGenerator cria um gerador. rng nil usa uma fonte PCG aleatória.
func NewMotionGenerator(rng *rand.Rand, cfg MotionConfig) *MotionGenerator {
	if rng == nil {
		rng = newRand()
	}
	if cfg.DwellMax <= 0 {
		cfg = DefaultMotionConfig()
	}
	if cfg.DwellMin > cfg.DwellMax {
		cfg.DwellMin = cfg.DwellMax
	}
	return &MotionGenerator{rng: rng, cfg: cfg, sleep: SleepContext}
}

// StepCount é o número de passos para uma distância em pixels.
func StepCount(dist float64) int {
	n := math.Ceil(dist / pixelsPerStep)
	return int(clamp(n, minMotionSteps, maxMotionSteps))
}

// Generate devolve a sequência de passos de from até to. Os parâmetros da
// curva são sorteados aqui; o jitter de cada passo é sorteado durante a
// iteração. A sequência só pode ser percorrida uma vez.
func (g *MotionGenerator) Generate(from, to Point) iter.Seq[Step] {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Hypot(dx, dy)
	steps := StepCount(dist)

	cp1 := Point{
		X: from.X + dx*0.2 + (g.rng.Float64()-0.5)*50,
		Y: from.Y + dy*0.2 + (g.rng.Float64()-0.5)*50,
	}
	cp2 := Point{
		X: from.X + dx*0.6 + (g.rng.Float64()-0.5)*30,
		Y: from.Y + dy*0.6 + (g.rng.Float64()-0.5)*30,
	}

	maxAmp := clamp(dist*0.04, 12, 60)
	freq := 1 + g.rng.Float64()*2.2
	phase := g.rng.Float64() * 2 * math.Pi

	consumed := false
	return func(yield func(Step) bool) {
		if consumed {
			return
		}
		consumed = true

		for i := 1; i <= steps; i++ {
			t := float64(i) / float64(steps)
			z := Ease(t)
			delay := Dwell(z, g.cfg.DwellMin, g.cfg.DwellMax)

			if i == steps {
				yield(Step{Point: to, Delay: delay})
				return
			}

			p := BezierPoint(from, cp1, cp2, to, z)
			tan := BezierTangent(from, cp1, cp2, to, z)
			length := math.Hypot(tan.X, tan.Y)
			if length == 0 {
				length = 1
			}
			// perpendicular ao trajeto
			px, py := -tan.Y/length, tan.X/length

			taper := math.Sin(math.Pi * t)
			oscillation := math.Sin(2*math.Pi*freq*t + phase)
			offset := maxAmp * taper * oscillation

			p.X += px*offset + (g.rng.Float64()-0.5)*3
			p.Y += py*offset + (g.rng.Float64()-0.5)*3

			if !yield(Step{Point: p, Delay: delay}) {
				return
			}
		}
	}
}

// StartPoint sintetiza uma posição inicial plausível: parte de um canto
// aleatório do viewport e entra na página num ângulo entre 0° e 90°.
// Viewport desconhecido (largura ou altura <= 0) cai num quadro de 800x600.
func (g *MotionGenerator) StartPoint(width, height float64) Point {
	if width <= 0 || height <= 0 {
		return g.fallbackStart()
	}

	corners := [4]Point{
		{X: 0, Y: 0},
		{X: width - 1, Y: 0},
		{X: 0, Y: height - 1},
		{X: width - 1, Y: height - 1},
	}
	corner := corners[g.rng.IntN(len(corners))]
	angle := g.rng.Float64() * math.Pi / 2

	diag := math.Hypot(width, height)
	minR := math.Min(80, diag*0.05)
	maxR := math.Min(300, diag*0.35)
	r := minR + g.rng.Float64()*(maxR-minR)

	dirX, dirY := inward(corner.X), inward(corner.Y)
	x := corner.X + math.Cos(angle)*r*dirX
	y := corner.Y + math.Sin(angle)*r*dirY

	return Point{
		X: clamp(math.Round(x), 0, width-1),
		Y: clamp(math.Round(y), 0, height-1),
	}
}

func (g *MotionGenerator) fallbackStart() Point {
	const w, h = 800.0, 600.0
	cornerX := float64(g.rng.IntN(2)) * w
	cornerY := float64(g.rng.IntN(2)) * h
	angle := g.rng.Float64() * math.Pi / 2
	r := 100 + g.rng.Float64()*200

	return Point{
		X: math.Round(cornerX + math.Cos(angle)*r*inward(cornerX)),
		Y: math.Round(cornerY + math.Sin(angle)*r*inward(cornerY)),
	}
}

func inward(corner float64) float64 {
	if corner == 0 {
		return 1
	}
	return -1
}

// MoveAlong percorre o trajeto de from até to pelo ponteiro, dormindo a
// pausa de cada passo. Erros de movimento são ignorados (melhor esforço);
// apenas o cancelamento do contexto interrompe. onStep pode ser nil.
func (g *MotionGenerator) MoveAlong(ctx context.Context, pointer Pointer, from, to Point, onStep func(Point)) error {
	for step := range g.Generate(from, to) {
		_ = pointer.MoveTo(ctx, step.Point)
		if onStep != nil {
			onStep(step.Point)
		}
		if err := g.sleep(ctx, step.Delay); err != nil {
			return err
		}
	}
	return nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
