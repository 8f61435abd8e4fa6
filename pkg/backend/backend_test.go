package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestNotConfigured_AllOperationsReportIt(t *testing.T) {
	ctx := context.Background()
	var s Store = NotConfigured{}

	if _, err := s.Recent(ctx, 200); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Recent err = %v, want ErrNotConfigured", err)
	}
	if err := s.Insert(ctx, domain.RawPost{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Insert err = %v, want ErrNotConfigured", err)
	}
	if _, err := s.Count(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Count err = %v, want ErrNotConfigured", err)
	}
	if _, err := s.Subscribe(func(domain.RawPost) {}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Subscribe err = %v, want ErrNotConfigured", err)
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"both set", Config{Neo4jURL: "neo4j://localhost:7687", NATSURL: "nats://localhost:4222"}, true},
		{"missing nats", Config{Neo4jURL: "neo4j://localhost:7687"}, false},
		{"missing neo4j", Config{NATSURL: "nats://localhost:4222"}, false},
		{"empty", Config{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostMapRoundTrip(t *testing.T) {
	in := domain.RawPost{
		ID:        "p1",
		Timestamp: time.Date(2025, 8, 12, 9, 30, 0, 0, time.UTC),
		Text:      "Confirmed dengue cluster in Shah Alam",
		Location:  domain.GeoLocation{Lat: 3.0733, Lng: 101.5185, Name: "Shah Alam"},
		Type:      domain.Confirmed,
		User:      "mkini_health",
	}

	rec := &neo4j.Record{Values: []any{postToMap(in)}, Keys: []string{"n"}}
	out, err := postFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Text != in.Text || out.User != in.User || out.Type != in.Type {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Location != in.Location {
		t.Fatalf("location = %+v, want %+v", out.Location, in.Location)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
}

func TestPostToMap_OmitsEmptyOptionals(t *testing.T) {
	props := postToMap(domain.RawPost{ID: "p2", Timestamp: time.Now(), Text: "x"})
	for _, k := range []string{"loc_name", "type", "user"} {
		if _, ok := props[k]; ok {
			t.Errorf("props[%q] present, want omitted", k)
		}
	}
}

func TestPostFromRecord_BadInputs(t *testing.T) {
	if _, err := postFromRecord(&neo4j.Record{}); err == nil {
		t.Error("expected error for empty record")
	}
	if _, err := postFromRecord(&neo4j.Record{Values: []any{42}, Keys: []string{"n"}}); err == nil {
		t.Error("expected error for unexpected value type")
	}
	bad := map[string]any{"id": "p3", "timestamp": "yesterday"}
	if _, err := postFromRecord(&neo4j.Record{Values: []any{bad}, Keys: []string{"n"}}); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}
