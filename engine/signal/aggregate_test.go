package signal

import (
	"fmt"
	"testing"
	"time"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/engine/nlp"
)

var pj = domain.GeoLocation{Lat: 3.1073, Lng: 101.6067, Name: "Petaling Jaya"}
var klang = domain.GeoLocation{Lat: 3.0449, Lng: 101.4455, Name: "Klang"}
var kl = domain.GeoLocation{Lat: 3.139, Lng: 101.6869, Name: "Kuala Lumpur"}

func post(id string, loc domain.GeoLocation, typ domain.PostType, minute int) domain.ProcessedPost {
	return nlp.Process(domain.RawPost{
		ID:        id,
		Timestamp: time.Date(2025, 8, 12, 9, minute, 0, 0, time.UTC),
		Text:      "dengue update",
		Location:  loc,
		Type:      typ,
	})
}

func TestHotspots_WeightedIntensity(t *testing.T) {
	// confirmed + misinformation + general at one named location = 3 + 1.5 + 1.
	posts := []domain.ProcessedPost{
		post("a", pj, domain.Confirmed, 1),
		post("b", pj, domain.Misinformation, 2),
		post("c", pj, domain.General, 3),
	}
	spots := Hotspots(posts)
	if len(spots) != 1 {
		t.Fatalf("got %d hotspots, want 1", len(spots))
	}
	if spots[0].Key != "Petaling Jaya" {
		t.Errorf("key = %q, want Petaling Jaya", spots[0].Key)
	}
	if spots[0].Intensity != 5.5 {
		t.Errorf("intensity = %v, want 5.5", spots[0].Intensity)
	}
	if len(spots[0].Posts) != 3 {
		t.Errorf("posts = %d, want 3", len(spots[0].Posts))
	}
}

func TestHotspots_SortedDescendingNonNegative(t *testing.T) {
	var posts []domain.ProcessedPost
	for i := 0; i < 4; i++ {
		posts = append(posts, post(fmt.Sprintf("k%d", i), klang, domain.Confirmed, i))
	}
	posts = append(posts, post("p", pj, domain.General, 5))
	posts = append(posts, post("l", kl, domain.Misinformation, 6))

	spots := Hotspots(posts)
	if len(spots) != 3 {
		t.Fatalf("got %d hotspots, want 3", len(spots))
	}
	for i, h := range spots {
		if h.Intensity < 0 {
			t.Errorf("hotspot %d intensity %v < 0", i, h.Intensity)
		}
		if i > 0 && spots[i-1].Intensity < h.Intensity {
			t.Errorf("hotspots not sorted descending at %d", i)
		}
	}
	if spots[0].Key != "Klang" {
		t.Errorf("heaviest hotspot = %q, want Klang", spots[0].Key)
	}
}

func TestHotspots_UnnamedLocationGroupsByRoundedCoords(t *testing.T) {
	a := domain.GeoLocation{Lat: 3.1011, Lng: 101.6022}
	b := domain.GeoLocation{Lat: 3.1014, Lng: 101.6019} // same 2dp key
	spots := Hotspots([]domain.ProcessedPost{
		post("a", a, domain.General, 1),
		post("b", b, domain.General, 2),
	})
	if len(spots) != 1 {
		t.Fatalf("got %d hotspots, want 1 (rounded-coordinate identity)", len(spots))
	}
	if spots[0].Key != "3.10,101.60" {
		t.Errorf("key = %q, want 3.10,101.60", spots[0].Key)
	}
}

func TestHotspots_NonDengueExcluded(t *testing.T) {
	malaria := nlp.Process(domain.RawPost{ID: "m", Text: "malaria cluster reported", Location: pj, Type: domain.General})
	spots := Hotspots([]domain.ProcessedPost{malaria})
	if len(spots) != 0 {
		t.Fatalf("got %d hotspots, want 0 for malaria-only post", len(spots))
	}
}

func TestMisinfoFeed_MostRecentFirstCapped(t *testing.T) {
	var posts []domain.ProcessedPost
	for i := 0; i < MisinfoFeedCap+10; i++ {
		posts = append(posts, post(fmt.Sprintf("m%d", i), pj, domain.Misinformation, i%60))
	}
	feed := MisinfoFeed(posts)
	if len(feed) != MisinfoFeedCap {
		t.Fatalf("feed length = %d, want %d", len(feed), MisinfoFeedCap)
	}
	if feed[0].ID != fmt.Sprintf("m%d", MisinfoFeedCap+9) {
		t.Errorf("feed[0] = %s, want newest arrival", feed[0].ID)
	}
	if feed[len(feed)-1].ID != "m10" {
		t.Errorf("feed tail = %s, want m10 (oldest surviving the cap)", feed[len(feed)-1].ID)
	}
}

func TestMisinfoFeed_OnlyMisinformation(t *testing.T) {
	feed := MisinfoFeed([]domain.ProcessedPost{
		post("a", pj, domain.Confirmed, 1),
		post("b", pj, domain.Misinformation, 2),
		post("c", pj, domain.General, 3),
	})
	if len(feed) != 1 || feed[0].ID != "b" {
		t.Fatalf("feed = %v, want just post b", feed)
	}
}

func TestTimeline_SortedAscendingCountsPositive(t *testing.T) {
	posts := []domain.ProcessedPost{
		post("a", pj, domain.General, 30),
		post("b", pj, domain.General, 5),
		post("c", pj, domain.General, 30),
		post("d", pj, domain.General, 59),
	}
	buckets := Timeline(posts)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	for i, b := range buckets {
		if b.Count < 1 {
			t.Errorf("bucket %q count %d < 1", b.Time, b.Count)
		}
		if i > 0 && buckets[i-1].Time >= b.Time {
			t.Errorf("buckets not ascending at %d: %q >= %q", i, buckets[i-1].Time, b.Time)
		}
	}
	// The double-posted minute carries count 2.
	want := time.Date(2025, 8, 12, 9, 30, 0, 0, time.UTC).Local().Format("15:04")
	found := false
	for _, b := range buckets {
		if b.Time == want && b.Count == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected bucket %q with count 2 in %v", want, buckets)
	}
}

func TestSelangor_ThresholdLevels(t *testing.T) {
	mk := func(intensity float64) []domain.Hotspot {
		return []domain.Hotspot{{Key: "Shah Alam", Location: domain.GeoLocation{Name: "Shah Alam"}, Intensity: intensity}}
	}
	tests := []struct {
		strength float64
		want     domain.AlertLevel
	}{
		{0, domain.LevelSafe},
		{8, domain.LevelSafe}, // thresholds are exclusive lower bounds
		{8.5, domain.LevelWatch},
		{16, domain.LevelWatch},
		{20, domain.LevelWarning},
		{24, domain.LevelWarning},
		{24.5, domain.LevelCritical},
	}
	for _, tt := range tests {
		sig := Selangor(mk(tt.strength))
		if sig.Level != tt.want {
			t.Errorf("Selangor(strength=%v).Level = %q, want %q", tt.strength, sig.Level, tt.want)
		}
		if sig.Strength != tt.strength {
			t.Errorf("strength = %v, want %v", sig.Strength, tt.strength)
		}
	}
}

func TestSelangor_OnlyMatchingRegionsCounted(t *testing.T) {
	spots := []domain.Hotspot{
		{Key: "Petaling Jaya", Location: domain.GeoLocation{Name: "Petaling Jaya"}, Intensity: 12},
		{Key: "Gombak", Location: domain.GeoLocation{Name: "Gombak"}, Intensity: 8},
		{Key: "Singapore", Location: domain.GeoLocation{Name: "Singapore"}, Intensity: 100},
		{Key: "3.10,101.60", Location: domain.GeoLocation{Lat: 3.1, Lng: 101.6}, Intensity: 50},
	}
	sig := Selangor(spots)
	if sig.Strength != 20 {
		t.Fatalf("strength = %v, want 20", sig.Strength)
	}
	if sig.Level != domain.LevelWarning {
		t.Fatalf("level = %q, want warning (>16, not >24)", sig.Level)
	}
}

// Increasing matching intensity never lowers the level.
func TestSelangor_MonotonicInStrength(t *testing.T) {
	rank := map[domain.AlertLevel]int{
		domain.LevelSafe: 0, domain.LevelWatch: 1, domain.LevelWarning: 2, domain.LevelCritical: 3,
	}
	prev := -1
	for s := 0.0; s <= 40; s += 0.5 {
		sig := Selangor([]domain.Hotspot{{Location: domain.GeoLocation{Name: "Klang"}, Intensity: s}})
		if rank[sig.Level] < prev {
			t.Fatalf("level decreased at strength %v", s)
		}
		prev = rank[sig.Level]
	}
}
