// Package nlp implements the rule-based post classifier: category, disease
// keywords, a sentiment heuristic, and canned fact-check lookups. Pure regex
// and substring matching over lowercased text — no external model, total over
// any input including the empty string.
package nlp

import (
	"strings"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/pkg/fn"
)

// DiseaseVocab is the fixed disease keyword vocabulary, in match order.
var DiseaseVocab = []string{"dengue", "malaria", "covid", "chikungunya"}

// FallbackDisease is assumed when no vocabulary word matches.
const FallbackDisease = "dengue"

var fearWords = []string{"worried", "scared", "fear", "panic", "concern", "afraid"}

var symptomWords = []string{"fever", "vomit", "nausea", "headache", "admission", "hospital", "positive"}

// Category patterns. Confirmation is checked before misinformation; first
// match wins.
var confirmPatterns = []string{"confirm", "positive", "admit", "lab result"}

var misinfoPatterns = []string{"cure", "airborne", "person-to-person", "vaccine available everywhere", "garlic", "papaya"}

// Confirmations increase perceived concern; community action reduces it.
var concernPatterns = []string{"confirmed", "positive", "admit"}

var communityPatterns = []string{"clean-up", "fogging", "authorit", "notified", "prevention"}

// factCheckTable maps substring triggers to corrective strings. Entries are
// checked in order; the first match wins.
var factCheckTable = []struct {
	triggers []string
	response string
}{
	{[]string{"papaya"}, "There is no scientific evidence that papaya leaf juice cures dengue. Management focuses on hydration, monitoring, and medical care."},
	{[]string{"person-to-person", "airborne"}, "Dengue does not spread person-to-person or through the air. It is transmitted by Aedes mosquitoes. Prevent bites and remove stagnant water."},
	{[]string{"garlic"}, "Garlic or herbal remedies do not prevent dengue. Use proven methods: eliminate stagnant water, use repellents, and ensure community fogging when advised."},
	{[]string{"uv lamp"}, "UV lamps are not an effective dengue control measure outdoors. Source reduction and repellents are recommended by public health authorities."},
	{[]string{"vaccine"}, "Dengue vaccines have specific eligibility and are not universally recommended. Consult official MOH guidance and your doctor."},
	{[]string{"hiding numbers", "deaths higher"}, "Official case/death reporting follows MOH protocols. Always refer to the latest MOH dashboards for verified figures."},
}

func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify returns the post's category. An explicit author-supplied type
// always wins; otherwise confirmation patterns are checked before
// misinformation patterns.
func Classify(post domain.RawPost) domain.PostType {
	if post.Type != "" {
		return post.Type
	}
	t := strings.ToLower(post.Text)
	if matchesAny(t, confirmPatterns) {
		return domain.Confirmed
	}
	if matchesAny(t, misinfoPatterns) {
		return domain.Misinformation
	}
	return domain.General
}

// Diseases returns every vocabulary disease mentioned in text, in vocabulary
// order. When nothing matches it falls back to {dengue}.
func Diseases(text string) []string {
	t := strings.ToLower(text)
	matches := fn.Filter(DiseaseVocab, func(d string) bool {
		return strings.Contains(t, d)
	})
	if len(matches) == 0 {
		return []string{FallbackDisease}
	}
	return matches
}

// Score computes the concern heuristic: -0.2 per fear word, -0.1 per symptom
// word, -0.2 once for a confirmation, +0.15 once for community action,
// clamped to [-1, 1].
func Score(text string) domain.Sentiment {
	t := strings.ToLower(text)
	score := 0.0
	for _, w := range fearWords {
		if strings.Contains(t, w) {
			score -= 0.2
		}
	}
	for _, w := range symptomWords {
		if strings.Contains(t, w) {
			score -= 0.1
		}
	}
	if matchesAny(t, concernPatterns) {
		score -= 0.2
	}
	if matchesAny(t, communityPatterns) {
		score += 0.15
	}
	if score < -1 {
		score = -1
	}
	if score > 1 {
		score = 1
	}
	label := domain.SentimentLow
	switch {
	case score < -0.5:
		label = domain.SentimentHigh
	case score < -0.2:
		label = domain.SentimentMedium
	}
	return domain.Sentiment{Score: score, Label: label}
}

// FactCheck returns the canned corrective for the first matching trigger in
// text, or "" when no trigger matches.
func FactCheck(text string) string {
	t := strings.ToLower(text)
	for _, entry := range factCheckTable {
		if matchesAny(t, entry.triggers) {
			return entry.response
		}
	}
	return ""
}

// Process derives the full classification for a raw post. FactCheck is
// computed only for misinformation.
func Process(raw domain.RawPost) domain.ProcessedPost {
	category := Classify(raw)
	post := domain.ProcessedPost{
		RawPost:   raw,
		Category:  category,
		Diseases:  Diseases(raw.Text),
		Sentiment: Score(raw.Text),
	}
	if category == domain.Misinformation {
		post.FactCheck = FactCheck(raw.Text)
	}
	return post
}
