// Package domain defines the core post and aggregate types shared across the
// Soph engine pipeline, plus the normalization gate applied at pipeline entry.
package domain

import (
	"fmt"
	"time"
)

// PostType categorizes an outbreak post.
type PostType string

const (
	Confirmed      PostType = "confirmed"
	Misinformation PostType = "misinformation"
	General        PostType = "general"
)

// GeoLocation is a post's point of origin. Name, when present, is the
// canonical grouping identity.
type GeoLocation struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

// Key returns the hotspot grouping identity: the location name if set,
// otherwise lat/lng rounded to 2 decimal places.
func (g GeoLocation) Key() string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("%.2f,%.2f", g.Lat, g.Lng)
}

// RawPost is a social-media-style post as it arrives from a source.
// Immutable once created.
type RawPost struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Text      string      `json:"text"`
	Location  GeoLocation `json:"location"`
	Type      PostType    `json:"type,omitempty"` // author-supplied, optional
	User      string      `json:"user,omitempty"`
}

// SentimentLabel buckets a sentiment score.
type SentimentLabel string

const (
	SentimentLow    SentimentLabel = "low"
	SentimentMedium SentimentLabel = "medium"
	SentimentHigh   SentimentLabel = "high"
)

// Sentiment is a heuristic concern score in [-1, 1] with its label.
type Sentiment struct {
	Score float64        `json:"score"`
	Label SentimentLabel `json:"label"`
}

// ProcessedPost is a RawPost enriched by the classifier. Derived once at
// ingestion time; immutable thereafter. Diseases is never empty.
type ProcessedPost struct {
	RawPost
	Category  PostType  `json:"category"`
	Diseases  []string  `json:"diseases"`
	Sentiment Sentiment `json:"sentiment"`
	FactCheck string    `json:"factCheck,omitempty"`
}

// Hotspot is an aggregated cluster of dengue posts sharing a location key,
// weighted by category.
type Hotspot struct {
	Key       string          `json:"key"`
	Location  GeoLocation     `json:"location"`
	Intensity float64         `json:"intensity"`
	Posts     []ProcessedPost `json:"posts"`
}

// TimelineBucket counts dengue posts for one local-time minute.
type TimelineBucket struct {
	Time  string `json:"time"` // "HH:MM"
	Count int    `json:"count"`
}

// AlertLevel is the discrete regional alert level.
type AlertLevel string

const (
	LevelSafe     AlertLevel = "safe"
	LevelWatch    AlertLevel = "watch"
	LevelWarning  AlertLevel = "warning"
	LevelCritical AlertLevel = "critical"
)

// RegionalSignal is the summed hotspot intensity for the watched region and
// its alert level.
type RegionalSignal struct {
	Strength float64    `json:"strength"`
	Level    AlertLevel `json:"level"`
}
