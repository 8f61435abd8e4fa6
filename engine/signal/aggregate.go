// Package signal folds the processed post collection into the derived
// dashboard views: hotspots, the misinformation feed, the timeline, and the
// regional alert signal. Every function is a pure recomputation over the full
// collection; nothing here holds state between calls.
package signal

import (
	"slices"
	"sort"
	"strings"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/engine/nlp"
	"github.com/SophHealth/soph-mvp/pkg/fn"
)

// MisinfoFeedCap bounds the misinformation feed to the most recent entries.
const MisinfoFeedCap = 50

// Alert level thresholds (exclusive lower bounds on summed intensity).
const (
	WatchThreshold    = 8.0
	WarningThreshold  = 16.0
	CriticalThreshold = 24.0
)

// selangorKeys is the regional-name allowlist for the signal sum.
var selangorKeys = []string{"selangor", "shah alam", "petaling jaya", "klang", "gombak"}

// Weight returns the hotspot intensity contribution per post category.
func Weight(t domain.PostType) float64 {
	switch t {
	case domain.Confirmed:
		return 3
	case domain.Misinformation:
		return 1.5
	default:
		return 1
	}
}

// DengueOnly returns the posts tagged with the dengue keyword.
func DengueOnly(posts []domain.ProcessedPost) []domain.ProcessedPost {
	return fn.Filter(posts, func(p domain.ProcessedPost) bool {
		return slices.Contains(p.Diseases, nlp.FallbackDisease)
	})
}

// Hotspots groups dengue posts by location key and sums category weights.
// Groups appear in first-seen order, then sort descending by intensity;
// ties keep their grouping order.
func Hotspots(posts []domain.ProcessedPost) []domain.Hotspot {
	index := make(map[string]int)
	var spots []domain.Hotspot
	for _, p := range DengueOnly(posts) {
		key := p.Location.Key()
		i, ok := index[key]
		if !ok {
			i = len(spots)
			index[key] = i
			spots = append(spots, domain.Hotspot{Key: key, Location: p.Location})
		}
		spots[i].Intensity += Weight(p.Category)
		spots[i].Posts = append(spots[i].Posts, p)
	}
	sort.SliceStable(spots, func(a, b int) bool {
		return spots[a].Intensity > spots[b].Intensity
	})
	return spots
}

// MisinfoFeed returns dengue misinformation posts, most recent first, capped
// to the last MisinfoFeedCap by arrival order.
func MisinfoFeed(posts []domain.ProcessedPost) []domain.ProcessedPost {
	mis := fn.Filter(DengueOnly(posts), func(p domain.ProcessedPost) bool {
		return p.Category == domain.Misinformation
	})
	if len(mis) > MisinfoFeedCap {
		mis = mis[len(mis)-MisinfoFeedCap:]
	}
	out := make([]domain.ProcessedPost, len(mis))
	for i, p := range mis {
		out[len(mis)-1-i] = p
	}
	return out
}

// Timeline buckets dengue posts by local "HH:MM", sorted ascending by key.
// Minutes with no posts get no bucket.
func Timeline(posts []domain.ProcessedPost) []domain.TimelineBucket {
	counts := make(map[string]int)
	for _, p := range DengueOnly(posts) {
		counts[p.Timestamp.Local().Format("15:04")]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buckets := make([]domain.TimelineBucket, len(keys))
	for i, k := range keys {
		buckets[i] = domain.TimelineBucket{Time: k, Count: counts[k]}
	}
	return buckets
}

// Selangor sums the intensity of hotspots whose location name matches the
// regional allowlist and maps it to an alert level. Higher thresholds
// override lower ones, so the level is monotonic in strength.
func Selangor(spots []domain.Hotspot) domain.RegionalSignal {
	strength := fn.Reduce(spots, 0.0, func(acc float64, h domain.Hotspot) float64 {
		name := strings.ToLower(h.Location.Name)
		for _, k := range selangorKeys {
			if strings.Contains(name, k) {
				return acc + h.Intensity
			}
		}
		return acc
	})
	level := domain.LevelSafe
	switch {
	case strength > CriticalThreshold:
		level = domain.LevelCritical
	case strength > WarningThreshold:
		level = domain.LevelWarning
	case strength > WatchThreshold:
		level = domain.LevelWatch
	}
	return domain.RegionalSignal{Strength: strength, Level: level}
}
