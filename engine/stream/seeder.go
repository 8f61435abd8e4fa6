package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/pkg/metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// seedPool is the rotating set of demo posts the seeder inserts. Each tick
// stamps a fresh id and timestamp so rows stay unique.
var seedPool = []domain.RawPost{
	{
		Text:     "Confirmed dengue case reported near the LRT station, fogging requested",
		Location: domain.GeoLocation{Lat: 3.1073, Lng: 101.6067, Name: "Petaling Jaya"},
		Type:     domain.Confirmed,
		User:     "demo_feed",
	},
	{
		Text:     "Neighbour swears papaya leaf juice cured her dengue overnight",
		Location: domain.GeoLocation{Lat: 3.0733, Lng: 101.5185, Name: "Shah Alam"},
		Type:     domain.Misinformation,
		User:     "demo_feed",
	},
	{
		Text:     "Clean-up drive this weekend, authorities notified about clogged drains",
		Location: domain.GeoLocation{Lat: 3.0449, Lng: 101.4456, Name: "Klang"},
		User:     "demo_feed",
	},
	{
		Text:     "Worried about the fever going around the school, three kids absent today",
		Location: domain.GeoLocation{Lat: 3.2021, Lng: 101.7003, Name: "Gombak"},
		User:     "demo_feed",
	},
	{
		Text:     "Hospital admission numbers climbing, lab result backlog at the clinic",
		Location: domain.GeoLocation{Lat: 3.139, Lng: 101.6869, Name: "Kuala Lumpur"},
		Type:     domain.Confirmed,
		User:     "demo_feed",
	},
}

// seeder periodically inserts demo rows into the backend so an empty table
// still produces live push events. The first insert failure halts it for
// good; the stream surfaces that as a notice.
type seeder struct {
	store   backendInserter
	log     *slog.Logger
	onHalt  func(error)
	cron    *cron.Cron
	mSeeded *metrics.Counter

	mu     sync.Mutex
	next   int
	halted bool
}

// backendInserter is the slice of the backend the seeder needs.
type backendInserter interface {
	Insert(ctx context.Context, post domain.RawPost) error
}

func newSeeder(store backendInserter, met *metrics.Registry, log *slog.Logger, onHalt func(error)) *seeder {
	return &seeder{
		store:   store,
		log:     log,
		onHalt:  onHalt,
		mSeeded: met.Counter("soph_seeder_inserts_total", "Demo rows inserted by the seeder"),
	}
}

// startSeeder schedules tick on the given cron spec and starts the clock.
func startSeeder(store backendInserter, spec string, met *metrics.Registry, log *slog.Logger, onHalt func(error)) (*seeder, error) {
	s := newSeeder(store, met, log, onHalt)
	c := cron.New()
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	s.cron = c
	c.Start()
	return s, nil
}

// tick inserts the next post from the rotating pool. After a failure the
// seeder stays halted; further ticks are no-ops.
func (s *seeder) tick() {
	s.mu.Lock()
	if s.halted {
		s.mu.Unlock()
		return
	}
	post := seedPool[s.next%len(seedPool)]
	s.next++
	s.mu.Unlock()

	post.ID = uuid.NewString()
	post.Timestamp = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Insert(ctx, post); err != nil {
		s.mu.Lock()
		already := s.halted
		s.halted = true
		s.mu.Unlock()
		if !already {
			s.stopCron()
			if s.onHalt != nil {
				s.onHalt(err)
			}
		}
		return
	}
	s.mSeeded.Inc()
	s.log.Debug("seeded demo post", "user", post.User)
}

// halt stops the clock and marks the seeder done. Idempotent.
func (s *seeder) halt() {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
	s.stopCron()
}

func (s *seeder) stopCron() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
