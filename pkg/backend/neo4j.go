package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/pkg/repo"
	"github.com/SophHealth/soph-mvp/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// postLabel is the node label for the posts table.
const postLabel = "Post"

// Neo4jStore persists posts as Post nodes and announces inserts over NATS.
// All row store calls go through a circuit breaker so a dead backend fails
// fast instead of hanging the stream.
type Neo4jStore struct {
	repo    *repo.Neo4jRepo[domain.RawPost, string]
	nc      *nats.Conn
	breaker *resilience.Breaker
	log     *slog.Logger
}

// NewNeo4jStore builds a Store over an established driver and NATS
// connection. The caller owns both handles and closes them on shutdown.
func NewNeo4jStore(driver neo4j.DriverWithContext, nc *nats.Conn, log *slog.Logger) *Neo4jStore {
	if log == nil {
		log = slog.Default()
	}
	r := repo.NewNeo4jRepo[domain.RawPost, string](driver, postLabel, postToMap, postFromRecord)
	return &Neo4jStore{
		repo:    r,
		nc:      nc,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		log:     log,
	}
}

var _ Store = (*Neo4jStore)(nil)

func (s *Neo4jStore) Recent(ctx context.Context, limit int) ([]domain.RawPost, error) {
	var posts []domain.RawPost
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		posts, err = s.repo.List(ctx, repo.ListOpts{
			Limit:     limit,
			OrderBy:   "timestamp",
			Ascending: true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("backend recent: %w", err)
	}
	return posts, nil
}

func (s *Neo4jStore) Insert(ctx context.Context, post domain.RawPost) error {
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		_, err := s.repo.Create(ctx, post)
		return err
	})
	if err != nil {
		return fmt.Errorf("backend insert: %w", err)
	}
	// Announce the row so push subscribers see it in arrival order.
	if err := publish(ctx, s.nc, SubjectPostInserted, post); err != nil {
		return fmt.Errorf("backend announce: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("backend count: %w", err)
	}
	return n, nil
}

func (s *Neo4jStore) Subscribe(handler func(domain.RawPost)) (func(), error) {
	sub, err := subscribe(s.nc, SubjectPostInserted, func(_ context.Context, post domain.RawPost) {
		handler(post)
	})
	if err != nil {
		return nil, fmt.Errorf("backend subscribe: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Warn("push channel unsubscribe", "error", err)
		}
	}, nil
}

// postToMap flattens a post into node properties. The timestamp is stored as
// RFC 3339 so lexicographic ORDER BY equals chronological order.
func postToMap(p domain.RawPost) map[string]any {
	props := map[string]any{
		"id":        p.ID,
		"timestamp": p.Timestamp.UTC().Format(time.RFC3339),
		"text":      p.Text,
		"lat":       p.Location.Lat,
		"lng":       p.Location.Lng,
	}
	if p.Location.Name != "" {
		props["loc_name"] = p.Location.Name
	}
	if p.Type != "" {
		props["type"] = string(p.Type)
	}
	if p.User != "" {
		props["user"] = p.User
	}
	return props
}

func postFromRecord(rec *neo4j.Record) (domain.RawPost, error) {
	if len(rec.Values) == 0 {
		return domain.RawPost{}, fmt.Errorf("backend: empty record")
	}
	var props map[string]any
	switch v := rec.Values[0].(type) {
	case neo4j.Node:
		props = v.Props
	case map[string]any:
		props = v
	default:
		return domain.RawPost{}, fmt.Errorf("backend: unexpected record value %T", v)
	}

	p := domain.RawPost{
		ID:   str(props["id"]),
		Text: str(props["text"]),
		Location: domain.GeoLocation{
			Lat:  num(props["lat"]),
			Lng:  num(props["lng"]),
			Name: str(props["loc_name"]),
		},
		Type: domain.PostType(str(props["type"])),
		User: str(props["user"]),
	}
	if ts := str(props["timestamp"]); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return domain.RawPost{}, fmt.Errorf("backend: bad timestamp %q: %w", ts, err)
		}
		p.Timestamp = t
	}
	return p, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
