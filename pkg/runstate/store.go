package runstate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bakomon/renewal/pkg/config"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "renewal:lastrun:"

// Store guarda no Redis o instante da última renovação de cada site.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(site string) string {
	return keyPrefix + site
}

// LastRun devolve o zero de time.Time quando o site nunca rodou.
func (s *Store) LastRun(ctx context.Context, site string) (time.Time, error) {
	val, err := s.rdb.Get(ctx, key(site)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("erro lendo última execução de %s: %w", site, err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("última execução de %s inválida (%q): %w", site, val, err)
	}
	return t, nil
}

// MarkRun grava at como última execução. Sem TTL: o registro vale até a
// próxima renovação.
func (s *Store) MarkRun(ctx context.Context, site string, at time.Time) error {
	return s.rdb.Set(ctx, key(site), at.UTC().Format(time.RFC3339), 0).Err()
}

// Due diz se o site está vencido em now.
func (s *Store) Due(ctx context.Context, site config.SiteConfig, now time.Time) (bool, error) {
	last, err := s.LastRun(ctx, site.Name)
	if err != nil {
		return false, err
	}
	return ShouldRun(now, last, site.Interval)
}

// Grace é a folga de 1% do intervalo, arredondada para cima.
func Grace(value int) int {
	return int(math.Ceil(float64(value) * 0.01))
}

// ShouldRun compara o tempo decorrido, truncado na unidade do intervalo,
// com o intervalo menos a folga. Sem execução anterior sempre roda.
func ShouldRun(now, last time.Time, interval config.Interval) (bool, error) {
	unit, err := interval.UnitDuration()
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	elapsed := int(now.Sub(last) / unit)
	return elapsed >= interval.Value-Grace(interval.Value), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
