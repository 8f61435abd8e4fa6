// Package health simulates facility health statistics for the dashboard's
// stats card. Values drift randomly within clinical bounds for a fixed
// duration, then the simulator goes quiet.
package health

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Stats is one reading of the simulated facility counters.
type Stats struct {
	ActivePatients   int `json:"activePatients"`
	HeartRate        int `json:"heartRate"`
	OxygenSaturation int `json:"oxygenSaturation"`
	HospitalVisits   int `json:"hospitalVisits"`
	PendingAlerts    int `json:"pendingAlerts"`
	AvgWaitTime      int `json:"avgWaitTime"`
}

// Defaults is the baseline reading the simulator starts from.
var Defaults = Stats{
	ActivePatients:   120,
	HeartRate:        75,
	OxygenSaturation: 98,
	HospitalVisits:   12,
	PendingAlerts:    4,
	AvgWaitTime:      30,
}

// Options configures a Simulator. Zero values get the demo defaults.
type Options struct {
	Duration    time.Duration // total run time, default 5 minutes
	MinInterval time.Duration // default 2s
	MaxInterval time.Duration // exclusive upper bound, default 5s
	Initial     *Stats
	OnUpdate    func(Stats)
	Logger      *slog.Logger
}

// Simulator drifts the stats on a randomized interval until its duration
// elapses or Stop is called.
type Simulator struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	stats   Stats
	running bool
	stopCh  chan struct{}
}

// NewSimulator builds a Simulator; call Start to begin drifting.
func NewSimulator(opts Options) *Simulator {
	if opts.Duration <= 0 {
		opts.Duration = 5 * time.Minute
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 2 * time.Second
	}
	if opts.MaxInterval <= opts.MinInterval {
		opts.MaxInterval = opts.MinInterval + 3*time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	stats := Defaults
	if opts.Initial != nil {
		stats = *opts.Initial
	}
	return &Simulator{opts: opts, log: opts.Logger, stats: stats}
}

// Stats returns the latest reading.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Running reports whether the simulator is still drifting.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins the drift loop. Idempotent while running. The first tick
// fires immediately, matching the dashboard's instant first paint.
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.mu.Unlock()

	go s.loop(stopCh)
}

// Stop halts the drift loop. Safe to call at any time.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()
}

func (s *Simulator) loop(stopCh chan struct{}) {
	endAt := time.Now().Add(s.opts.Duration)
	s.tick()
	for {
		interval := s.opts.MinInterval +
			time.Duration(rand.Int63n(int64(s.opts.MaxInterval-s.opts.MinInterval)))
		timer := time.NewTimer(interval)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
		s.tick()
		if time.Now().After(endAt) {
			s.mu.Lock()
			if s.running {
				s.running = false
				s.stopCh = nil
			}
			s.mu.Unlock()
			s.log.Debug("health simulator finished")
			return
		}
	}
}

// tick drifts every counter and publishes the new reading.
func (s *Simulator) tick() {
	s.mu.Lock()
	prev := s.stats
	next := Stats{
		ActivePatients:   fluctuate(prev.ActivePatients, 0.2, 0.5, 0, 5000),
		HeartRate:        fluctuate(prev.HeartRate, 0.05, 0.15, 50, 120),
		OxygenSaturation: fluctuate(prev.OxygenSaturation, 0.01, 0.03, 90, 100),
		HospitalVisits:   fluctuate(prev.HospitalVisits, 0.3, 0.6, 0, 200),
		PendingAlerts:    fluctuate(prev.PendingAlerts, 0.4, 0.7, 0, 200),
		AvgWaitTime:      fluctuate(prev.AvgWaitTime, 0.15, 0.4, 0, 240),
	}
	s.stats = next
	s.mu.Unlock()
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(next)
	}
}

// fluctuate moves base by a random fraction in [minChange, maxChange) of its
// own magnitude, in a random direction, clamped to [lo, hi].
func fluctuate(base int, minChange, maxChange float64, lo, hi int) int {
	change := float64(base) * (rand.Float64()*(maxChange-minChange) + minChange)
	v := float64(base)
	if rand.Float64() > 0.5 {
		v += change
	} else {
		v -= change
	}
	n := int(math.Round(v))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
