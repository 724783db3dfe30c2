package captcha

import (
	"math"
	"time"
)

// Point é uma coordenada no viewport da página.
type Point struct {
	X float64
	Y float64
}

// BoundingBox é o retângulo ocupado por um elemento no viewport.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Valid indica se a caixa tem área positiva. Caixas de largura ou altura zero
// pertencem a elementos escondidos e nunca são clicáveis.
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Ease é um ease-out cúbico: rápido no início, desacelera perto do alvo.
func Ease(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// BezierPoint avalia a curva de Bézier cúbica no parâmetro t.
func BezierPoint(p0, p1, p2, p3 Point, t float64) Point {
	return Point{
		X: cubicBezier(t, p0.X, p1.X, p2.X, p3.X),
		Y: cubicBezier(t, p0.Y, p1.Y, p2.Y, p3.Y),
	}
}

// BezierTangent é a derivada da curva em t (vetor, não normalizado).
func BezierTangent(p0, p1, p2, p3 Point, t float64) Point {
	return Point{
		X: cubicBezierDerivative(t, p0.X, p1.X, p2.X, p3.X),
		Y: cubicBezierDerivative(t, p0.Y, p1.Y, p2.Y, p3.Y),
	}
}

// Dwell devolve a pausa entre dois passos do ponteiro: longa nas pontas do
// trajeto e curta no meio. Progressos fora de [0,1] são aceitos.
func Dwell(progress float64, shortest, longest time.Duration) time.Duration {
	factor := 1 - math.Sin(math.Pi*progress)
	return shortest + time.Duration(factor*float64(longest-shortest))
}

// cubicBezier calcula um ponto em uma curva de Bézier cúbica
func cubicBezier(t, p0, p1, p2, p3 float64) float64 {
	u := 1 - t
	tt := t * t
	uu := u * u

	return uu*u*p0 + 3*uu*t*p1 + 3*u*tt*p2 + tt*t*p3
}

func cubicBezierDerivative(t, p0, p1, p2, p3 float64) float64 {
	u := 1 - t
	return 3 * (u*u*(p1-p0) + 2*u*t*(p2-p1) + t*t*(p3-p2))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
