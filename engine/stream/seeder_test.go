package stream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/pkg/metrics"
)

type recordingInserter struct {
	mu    sync.Mutex
	posts []domain.RawPost
	err   error
}

func (r *recordingInserter) Insert(_ context.Context, post domain.RawPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.posts = append(r.posts, post)
	return nil
}

func TestSeeder_RotatesThroughPool(t *testing.T) {
	store := &recordingInserter{}
	s := newSeeder(store, metrics.New(), quietLogger(), nil)

	for i := 0; i < len(seedPool)+2; i++ {
		s.tick()
	}

	if len(store.posts) != len(seedPool)+2 {
		t.Fatalf("inserted = %d, want %d", len(store.posts), len(seedPool)+2)
	}
	// Wraps back to the start of the pool.
	if store.posts[len(seedPool)].Text != seedPool[0].Text {
		t.Error("pool did not rotate")
	}
	seen := map[string]bool{}
	for _, p := range store.posts {
		if p.ID == "" {
			t.Fatal("seeded post missing id")
		}
		if seen[p.ID] {
			t.Fatalf("duplicate seeded id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Timestamp.IsZero() {
			t.Fatal("seeded post missing timestamp")
		}
	}
}

func TestSeeder_HaltsOnFirstFailure(t *testing.T) {
	store := &recordingInserter{err: errors.New("row store down")}
	var haltErr error
	s := newSeeder(store, metrics.New(), quietLogger(), func(err error) { haltErr = err })

	s.tick()
	if haltErr == nil {
		t.Fatal("expected halt callback")
	}

	// Later ticks are no-ops and must not fire the callback again.
	haltErr = nil
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	s.tick()
	if haltErr != nil {
		t.Error("halt callback fired twice")
	}
	if len(store.posts) != 0 {
		t.Errorf("halted seeder inserted %d posts", len(store.posts))
	}
}

func TestSeeder_HaltIsIdempotent(t *testing.T) {
	store := &recordingInserter{}
	s := newSeeder(store, metrics.New(), quietLogger(), nil)
	s.halt()
	s.halt()
	s.tick()
	if len(store.posts) != 0 {
		t.Error("tick after halt inserted a post")
	}
}
