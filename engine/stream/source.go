// Package stream implements the post source: it feeds raw posts from either
// the remote backend or the bundled dataset through the classification
// pipeline into the in-memory collection, and keeps the derived dashboard
// views current. There is exactly one mutation path into the collection.
package stream

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/engine/nlp"
	"github.com/SophHealth/soph-mvp/engine/signal"
	"github.com/SophHealth/soph-mvp/pkg/backend"
	"github.com/SophHealth/soph-mvp/pkg/fn"
	"github.com/SophHealth/soph-mvp/pkg/metrics"
	"github.com/SophHealth/soph-mvp/pkg/resilience"
)

// BackfillLimit caps the rows fetched from the backend at load time.
const BackfillLimit = 200

// backfillWorkers bounds concurrent classification of backfilled rows.
const backfillWorkers = 4

// Mode selects where posts come from.
type Mode int

const (
	// ModeStatic drains the bundled dataset on a randomized timer.
	ModeStatic Mode = iota
	// ModeRemote backfills from the backend and follows its push channel.
	ModeRemote
)

func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "static"
}

// Notice is a non-fatal message surfaced to the presentation layer.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Snapshot is the full presentation-facing contract: the processed
// collection plus every derived view.
type Snapshot struct {
	Posts          []domain.ProcessedPost  `json:"posts"`
	DenguePosts    []domain.ProcessedPost  `json:"denguePosts"`
	Hotspots       []domain.Hotspot        `json:"hotspots"`
	Misinfo        []domain.ProcessedPost  `json:"misinfo"`
	Timeline       []domain.TimelineBucket `json:"timeline"`
	SelangorSignal domain.RegionalSignal   `json:"selangorSignal"`
	Running        bool                    `json:"running"`
}

// Options configures a Source. Zero values get demo defaults.
type Options struct {
	Backend     backend.Store // NotConfigured selects the dataset path
	DatasetPath string        // optional override for the bundled dataset
	MinDelay    time.Duration // static-mode release delay lower bound
	MaxDelay    time.Duration // exclusive upper bound
	SeedSpec    string        // cron spec for the demo seeder
	EventRate   float64       // push-subscription pacing, events/sec
	Retry       fn.RetryOpts  // backfill retry policy
	OnUpdate    func(Snapshot)
	OnNotice    func(Notice)
	Logger      *slog.Logger
	Metrics     *metrics.Registry
}

// Source drives the one-way flow: source → classifier → collection →
// aggregated views.
type Source struct {
	opts     Options
	log      *slog.Logger
	pipeline fn.Stage[domain.RawPost, domain.ProcessedPost]

	mu       sync.Mutex
	mode     Mode
	queue    []domain.RawPost
	posts    []domain.ProcessedPost
	snapshot Snapshot
	running  bool
	stopCh   chan struct{}
	unsub    func()
	seeder   *seeder

	mPosts    *metrics.Counter
	mNotices  *metrics.Counter
	mQueue    *metrics.Gauge
	mRunning  *metrics.Gauge
	mHotspots *metrics.Gauge
	mPipeline *metrics.Histogram
}

// New builds a Source. Load must be called before Start.
func New(opts Options) *Source {
	if opts.Backend == nil {
		opts.Backend = backend.NotConfigured{}
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 3 * time.Second
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = opts.MinDelay + 2*time.Second
	}
	if opts.SeedSpec == "" {
		opts.SeedSpec = "@every 3s"
	}
	if opts.EventRate <= 0 {
		opts.EventRate = 10 // matches the original realtime channel cap
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 250 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	met := opts.Metrics
	s := &Source{
		opts:      opts,
		log:       opts.Logger,
		mPosts:    met.Counter("soph_stream_posts_total", "Posts appended to the collection"),
		mNotices:  met.Counter("soph_stream_notices_total", "Non-fatal notices surfaced"),
		mQueue:    met.Gauge("soph_stream_queue_depth", "Dataset posts waiting for release"),
		mRunning:  met.Gauge("soph_stream_running", "1 while the stream is running"),
		mHotspots: met.Gauge("soph_stream_hotspots", "Current hotspot count"),
		mPipeline: met.Histogram("soph_stream_pipeline_duration_seconds", "Per-post classification time", nil),
	}
	s.pipeline = fn.TracedStage("stream.classify", fn.Then(
		fn.MapStage(domain.Normalize),
		fn.MapStage(nlp.Process),
	))
	s.refreshLocked()
	return s
}

// Load fetches the initial candidate set. With a configured, reachable
// backend it backfills the most recent rows and enters remote mode; any
// backend error degrades to the bundled dataset with a notice.
func (s *Source) Load(ctx context.Context) error {
	if _, absent := s.opts.Backend.(backend.NotConfigured); !absent {
		rows, err := fn.Retry(ctx, s.opts.Retry, func(ctx context.Context) fn.Result[[]domain.RawPost] {
			return fn.FromPair(s.opts.Backend.Recent(ctx, BackfillLimit))
		}).Unwrap()
		if err == nil {
			start := time.Now()
			processed := fn.BatchStage(backfillWorkers, s.pipeline)(ctx, rows).Must()
			s.mu.Lock()
			s.mode = ModeRemote
			s.posts = append(s.posts, processed...)
			s.refreshLocked()
			s.mPosts.Add(int64(len(processed)))
			s.mPipeline.Since(start)
			snap := s.snapshot
			s.mu.Unlock()
			s.log.Info("backend backfill complete", "posts", len(rows))
			s.update(snap)
			return nil
		}
		s.log.Error("backend init failed", "error", err)
		s.notify(Notice{
			Title: "Realtime unavailable",
			Body:  "Falling back to local simulator.",
		})
	}

	raws, err := loadDataset(s.opts.DatasetPath)
	if err != nil {
		return err
	}
	sort.Slice(raws, func(i, j int) bool {
		return raws[i].Timestamp.Before(raws[j].Timestamp)
	})
	s.mu.Lock()
	s.mode = ModeStatic
	s.queue = raws
	s.mQueue.Set(int64(len(raws)))
	s.mu.Unlock()
	s.log.Info("dataset loaded", "posts", len(raws))
	return nil
}

// Start begins delivery. Idempotent: calling it while running is a no-op.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mRunning.Set(1)
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	mode := s.mode
	s.refreshLocked()
	snap := s.snapshot
	s.mu.Unlock()

	s.log.Info("stream started", "mode", mode.String())
	s.update(snap)

	switch mode {
	case ModeStatic:
		go s.releaseLoop(stopCh)
	case ModeRemote:
		if err := s.follow(); err != nil {
			s.log.Error("push subscription failed", "error", err)
			s.notify(Notice{Title: "Realtime unavailable", Body: "Live updates are off."})
			// Without a push channel, seeded rows would never reach the
			// dashboard; leave the table alone.
			return
		}
		s.maybeSeed(ctx)
	}
}

// Stop halts delivery: the pending release is cancelled, the seeder stops,
// and the push subscription is torn down. No post is appended after Stop
// returns. Safe to call when no stream is active.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mRunning.Set(0)
	close(s.stopCh)
	s.stopCh = nil
	unsub := s.unsub
	s.unsub = nil
	sd := s.seeder
	s.seeder = nil
	s.refreshLocked()
	snap := s.snapshot
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if sd != nil {
		sd.halt()
	}
	s.log.Info("stream stopped")
	s.update(snap)
}

// Running reports whether the stream is delivering.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns the current derived views.
func (s *Source) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// releaseLoop drains the queue one post at a time on a randomized delay.
// The next delay is armed only after the previous append has completed.
func (s *Source) releaseLoop(stopCh chan struct{}) {
	for {
		delay := s.opts.MinDelay +
			time.Duration(rand.Int63n(int64(s.opts.MaxDelay-s.opts.MinDelay)))
		timer := time.NewTimer(delay)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
		if !s.releaseNext() {
			return
		}
	}
}

// releaseNext appends the head of the queue. Returns false once the stream
// has stopped or the queue is drained.
func (s *Source) releaseNext() bool {
	s.mu.Lock()
	if !s.running || len(s.queue) == 0 {
		drained := s.running
		s.mu.Unlock()
		if drained {
			s.log.Info("dataset drained")
		}
		return false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.mQueue.Set(int64(len(s.queue)))
	s.appendLocked(context.Background(), next)
	snap := s.snapshot
	s.mu.Unlock()
	s.update(snap)
	return true
}

// follow opens the push subscription. Events are paced by the configured
// rate limit (the original channel capped at 10 events/sec) and appended in
// arrival order.
func (s *Source) follow() error {
	lim := eventLimiter(s.opts.EventRate)
	unsub, err := s.opts.Backend.Subscribe(func(raw domain.RawPost) {
		if err := lim.Wait(context.Background()); err != nil {
			return
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.appendLocked(context.Background(), raw)
		snap := s.snapshot
		s.mu.Unlock()
		s.update(snap)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

// eventLimiter builds the push-channel pacer. Burst tracks the configured
// rate so a low rate cannot admit a large spike.
func eventLimiter(eventsPerSec float64) *resilience.Limiter {
	burst := int(eventsPerSec)
	if burst < 1 {
		burst = 1
	}
	return resilience.NewLimiter(resilience.LimiterOpts{Rate: eventsPerSec, Burst: burst})
}

// maybeSeed starts the demo seeder when the remote table is empty, so a
// fresh backend still shows live activity.
func (s *Source) maybeSeed(ctx context.Context) {
	n, err := s.opts.Backend.Count(ctx)
	if err != nil {
		s.log.Warn("backend count failed, skipping seeder", "error", err)
		return
	}
	if n > 0 {
		return
	}
	sd, err := startSeeder(s.opts.Backend, s.opts.SeedSpec, s.opts.Metrics, s.log, func(err error) {
		s.log.Error("seeding halted", "error", err)
		s.notify(Notice{Title: "Seeding halted", Body: "Demo inserts stopped after a backend error."})
	})
	if err != nil {
		s.log.Error("seeder start failed", "error", err)
		return
	}
	s.mu.Lock()
	s.seeder = sd
	s.mu.Unlock()
	s.log.Info("demo seeder started", "spec", s.opts.SeedSpec)
}

// appendLocked runs one raw post through the pipeline, grows the collection,
// and recomputes every derived view. Caller holds mu.
func (s *Source) appendLocked(ctx context.Context, raw domain.RawPost) {
	start := time.Now()
	processed := s.pipeline(ctx, raw).Must() // classification is total
	s.posts = append(s.posts, processed)
	s.refreshLocked()
	s.mPosts.Inc()
	s.mPipeline.Since(start)
}

// refreshLocked recomputes the cached snapshot from the collection.
// Caller holds mu.
func (s *Source) refreshLocked() {
	spots := signal.Hotspots(s.posts)
	s.snapshot = Snapshot{
		Posts:          s.posts,
		DenguePosts:    signal.DengueOnly(s.posts),
		Hotspots:       spots,
		Misinfo:        signal.MisinfoFeed(s.posts),
		Timeline:       signal.Timeline(s.posts),
		SelangorSignal: signal.Selangor(spots),
		Running:        s.running,
	}
	s.mHotspots.Set(int64(len(spots)))
}

func (s *Source) update(snap Snapshot) {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(snap)
	}
}

func (s *Source) notify(n Notice) {
	s.mNotices.Inc()
	if s.opts.OnNotice != nil {
		s.opts.OnNotice(n)
	}
}
