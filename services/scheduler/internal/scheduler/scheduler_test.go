package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bakomon/renewal/pkg/config"
	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/pkg/runstate"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type published struct {
	subject string
	job     jobs.RenewJob
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail map[string]bool
}

func (p *fakePublisher) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	job, err := jobs.Decode(data)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[job.Site] {
		return nil, errors.New("stream indisponível")
	}
	p.msgs = append(p.msgs, published{subject: subj, job: job})
	return &nats.PubAck{Stream: "RENEW"}, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func setup(t *testing.T, sites []config.SiteConfig) (*Scheduler, *runstate.Store, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := runstate.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	pub := &fakePublisher{fail: map[string]bool{}}
	s := New(store, pub, "jobs.renew", sites, zaptest.NewLogger(t))
	return s, store, pub
}

func site(name string, days int) config.SiteConfig {
	return config.SiteConfig{Name: name, Interval: config.Interval{Value: days, Unit: "day"}}
}

func TestTickPublishesDueSitesAndMarksThem(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	off := false
	disabled := site("zampto", 1)
	disabled.Enabled = &off

	s, store, pub := setup(t, []config.SiteConfig{site("hidencloud", 7), site("alwaysdata", 30), disabled})
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.MarkRun(ctx, "alwaysdata", now.Add(-2*24*time.Hour)))

	names, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hidencloud"}, names)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "jobs.renew", pub.msgs[0].subject)
	assert.Equal(t, "hidencloud", pub.msgs[0].job.Site)
	assert.NotEmpty(t, pub.msgs[0].job.ID)

	last, err := store.LastRun(ctx, "hidencloud")
	require.NoError(t, err)
	assert.True(t, last.Equal(now))

	// segundo ciclo no mesmo instante não republica
	names, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Len(t, pub.msgs, 1)
}

func TestTickDoesNotMarkWhenPublishFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s, store, pub := setup(t, []config.SiteConfig{site("heliohost", 30), site("webhostmost", 30)})
	s.now = func() time.Time { return now }
	pub.fail["heliohost"] = true

	ctx := context.Background()
	names, err := s.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"webhostmost"}, names)

	last, err := store.LastRun(ctx, "heliohost")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	pub.fail["heliohost"] = false
	names, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"heliohost"}, names)
}

func TestTickHonorsGrace(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// 100 horas de intervalo têm folga de 1 hora
	s, store, pub := setup(t, []config.SiteConfig{
		{Name: "sprinthost", Interval: config.Interval{Value: 100, Unit: "hour"}},
	})
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.MarkRun(ctx, "sprinthost", now.Add(-99*time.Hour)))

	names, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sprinthost"}, names)
	assert.Len(t, pub.msgs, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, pub := setup(t, []config.SiteConfig{site("hidencloud", 7)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, s.Run(ctx, time.Hour))
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run não encerrou após cancelamento")
	}
}

func TestSpecEveryInterval(t *testing.T) {
	assert.Equal(t, "@every 1h0m0s", Spec(time.Hour))
	assert.Equal(t, "@every 30m0s", Spec(30*time.Minute))

	_, err := cron.ParseStandard(Spec(90 * time.Second))
	assert.NoError(t, err)
}
