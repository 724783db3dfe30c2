package captcha

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(g *MotionGenerator, from, to Point) []Step {
	var steps []Step
	for s := range g.Generate(from, to) {
		steps = append(steps, s)
	}
	return steps
}

func TestGenerateEndsExactlyAtTarget(t *testing.T) {
	cases := []struct{ from, to Point }{
		{Point{0, 0}, Point{640, 360}},
		{Point{1279, 719}, Point{251, 232}},
		{Point{500, 500}, Point{503, 498}},
		{Point{10, 10}, Point{10, 10}},
		{Point{-50, 900}, Point{3000, -200}},
	}
	for seed := uint64(1); seed <= 40; seed++ {
		for _, c := range cases {
			g := NewMotionGenerator(seeded(seed), DefaultMotionConfig())
			steps := collect(g, c.from, c.to)
			require.NotEmpty(t, steps)
			assert.Equal(t, c.to, steps[len(steps)-1].Point, "seed %d", seed)
		}
	}
}

func TestStepCountBoundsAndMonotone(t *testing.T) {
	assert.Equal(t, 12, StepCount(0))
	assert.Equal(t, 12, StepCount(72))
	assert.Equal(t, 13, StepCount(73))
	assert.Equal(t, 96, StepCount(576))
	assert.Equal(t, 96, StepCount(10000))

	prev := StepCount(0)
	for d := 0.0; d <= 2000; d += 0.5 {
		n := StepCount(d)
		assert.GreaterOrEqual(t, n, 12)
		assert.LessOrEqual(t, n, 96)
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestGenerateUsesStepCountAndDwellRange(t *testing.T) {
	cfg := MotionConfig{DwellMin: 4 * time.Millisecond, DwellMax: 36 * time.Millisecond}
	g := NewMotionGenerator(seeded(7), cfg)
	from, to := Point{0, 0}, Point{300, 400}

	steps := collect(g, from, to)
	require.Len(t, steps, StepCount(500))
	for _, s := range steps {
		assert.GreaterOrEqual(t, s.Delay, cfg.DwellMin)
		assert.LessOrEqual(t, s.Delay, cfg.DwellMax)
	}
	// a última pausa é longa (desacelerando no alvo)
	assert.InDelta(t, float64(cfg.DwellMax), float64(steps[len(steps)-1].Delay), float64(time.Microsecond))
}

func TestGenerateIsSingleUse(t *testing.T) {
	g := NewMotionGenerator(seeded(3), DefaultMotionConfig())
	seq := g.Generate(Point{0, 0}, Point{100, 100})

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, StepCount(math.Hypot(100, 100)), first)
	assert.Zero(t, second)
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	a := collect(NewMotionGenerator(seeded(42), DefaultMotionConfig()), Point{5, 5}, Point{400, 220})
	b := collect(NewMotionGenerator(seeded(42), DefaultMotionConfig()), Point{5, 5}, Point{400, 220})
	assert.Equal(t, a, b)
}

func TestGeneratePathIsNotStraight(t *testing.T) {
	from, to := Point{0, 0}, Point{600, 0}
	g := NewMotionGenerator(seeded(11), DefaultMotionConfig())

	maxDev := 0.0
	for _, s := range collect(g, from, to) {
		maxDev = math.Max(maxDev, math.Abs(s.Point.Y))
	}
	assert.Greater(t, maxDev, 1.0)
}

func TestStartPointInsideViewport(t *testing.T) {
	sizes := [][2]float64{{1280, 720}, {1920, 1080}, {375, 667}, {200, 100}}
	for seed := uint64(1); seed <= 200; seed++ {
		g := NewMotionGenerator(seeded(seed), DefaultMotionConfig())
		for _, sz := range sizes {
			p := g.StartPoint(sz[0], sz[1])
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.GreaterOrEqual(t, p.Y, 0.0)
			assert.LessOrEqual(t, p.X, sz[0]-1)
			assert.LessOrEqual(t, p.Y, sz[1]-1)
			assert.Equal(t, math.Round(p.X), p.X)
			assert.Equal(t, math.Round(p.Y), p.Y)
		}
	}
}

func TestStartPointDistanceFromCorner(t *testing.T) {
	w, h := 1280.0, 720.0
	diag := math.Hypot(w, h)
	minR, maxR := math.Min(80, diag*0.05), math.Min(300, diag*0.35)
	corners := []Point{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}}

	for seed := uint64(1); seed <= 100; seed++ {
		p := NewMotionGenerator(seeded(seed), DefaultMotionConfig()).StartPoint(w, h)
		nearest := math.Inf(1)
		for _, c := range corners {
			nearest = math.Min(nearest, math.Hypot(p.X-c.X, p.Y-c.Y))
		}
		// arredondamento pode mover o ponto em até ~0.71px
		assert.GreaterOrEqual(t, nearest, minR-1)
		assert.LessOrEqual(t, nearest, maxR+1)
	}
}

func TestStartPointFallback(t *testing.T) {
	for seed := uint64(1); seed <= 100; seed++ {
		p := NewMotionGenerator(seeded(seed), DefaultMotionConfig()).StartPoint(0, 0)
		assert.GreaterOrEqual(t, p.X, -1.0)
		assert.LessOrEqual(t, p.X, 801.0)
		assert.GreaterOrEqual(t, p.Y, -1.0)
		assert.LessOrEqual(t, p.Y, 601.0)
	}
}

func TestMoveAlongSwallowsMoveErrors(t *testing.T) {
	g := NewMotionGenerator(seeded(5), DefaultMotionConfig())
	g.sleep = noSleep
	ptr := &fakePointer{moveErr: errors.New("target closed")}

	var seen []Point
	err := g.MoveAlong(context.Background(), ptr, Point{0, 0}, Point{120, 80}, func(p Point) { seen = append(seen, p) })
	require.NoError(t, err)

	moves, _ := ptr.counts()
	assert.Equal(t, StepCount(math.Hypot(120, 80)), moves)
	assert.Len(t, seen, moves)
	assert.Equal(t, Point{120, 80}, ptr.moves[len(ptr.moves)-1])
}

func TestMoveAlongStopsOnCancel(t *testing.T) {
	g := NewMotionGenerator(seeded(5), DefaultMotionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	g.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ctx.Err()
	}
	ptr := &fakePointer{}

	err := g.MoveAlong(ctx, ptr, Point{0, 0}, Point{500, 500}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	moves, _ := ptr.counts()
	assert.Equal(t, 3, moves)
}

func TestMoveAlongReplaysPathIgnoringMoveErrors(t *testing.T) {
	g := NewMotionGenerator(seeded(7), DefaultMotionConfig())
	rec := &sleepRecorder{}
	g.sleep = rec.sleep

	ptr := &fakePointer{moveErr: errors.New("mouse moved event failed")}
	var seen []Point
	err := g.MoveAlong(context.Background(), ptr, Point{0, 0}, Point{400, 300}, func(p Point) { seen = append(seen, p) })
	require.NoError(t, err)

	want := collect(NewMotionGenerator(seeded(7), DefaultMotionConfig()), Point{0, 0}, Point{400, 300})
	require.Len(t, ptr.moves, len(want))
	assert.Equal(t, ptr.moves, seen)
	assert.Equal(t, Point{400, 300}, ptr.moves[len(ptr.moves)-1])
	for i, d := range rec.durations() {
		assert.Equal(t, want[i].Delay, d)
	}
}
