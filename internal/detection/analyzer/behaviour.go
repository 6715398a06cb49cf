package analyzer

import (
	"fmt"
	"math"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
)

const (
	// timingSimilarityThreshold applies to hour-of-day posting rhythms.
	timingSimilarityThreshold = 0.80
	// activityLevelThreshold applies to the raw activity vectors, which are
	// noisier, so the bar sits higher.
	activityLevelThreshold = 0.85
	// styleSimilarityThreshold applies to the communication style composite.
	styleSimilarityThreshold = 0.80
	// channelSimilarityThreshold applies to channel usage overlap.
	channelSimilarityThreshold = 0.80
	// peakFactor marks an hour as a posting peak when its share reaches this
	// multiple of the mean share.
	peakFactor = 1.5
)

// BehaviouralAnalyzer compares how members act rather than who they claim to
// be: posting rhythm, activity volume, communication style and channel
// spread. It only considers members with recorded activity.
type BehaviouralAnalyzer struct{}

// Name returns the analyzer's tag.
func (*BehaviouralAnalyzer) Name() string { return TagBehavioural }

// Analyze runs all four behavioural comparisons over every active pair.
func (*BehaviouralAnalyzer) Analyze(s *Snapshot) []Edge {
	active := s.ActiveHumans()
	if len(active) < 2 {
		return nil
	}

	var edges []Edge

	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]

			if edge, ok := timingEdge(a, b, s.Timings); ok {
				edges = append(edges, edge)
			}

			if edge, ok := activityLevelEdge(a, b); ok {
				edges = append(edges, edge)
			}

			if edge, ok := communicationStyleEdge(a, b); ok {
				edges = append(edges, edge)
			}

			if edge, ok := channelUsageEdge(a, b); ok {
				edges = append(edges, edge)
			}
		}
	}

	return edges
}

// timingEdge compares hour-of-day posting histograms. When both members have
// pronounced peak hours the score blends cosine similarity with peak-hour
// overlap, which separates "both active at noon" from "both active all day".
func timingEdge(a, b *types.Member, timings map[uint64][]time.Time) (Edge, bool) {
	histA, okA := hourHistogram(timings[a.ID])
	histB, okB := hourHistogram(timings[b.ID])

	if !okA || !okB {
		return Edge{}, false
	}

	similarity := cosineSimilarity(histA[:], histB[:])

	peaksA := peakHours(histA)
	peaksB := peakHours(histB)

	if len(peaksA) > 0 && len(peaksB) > 0 {
		similarity = similarity*0.7 + jaccard(peaksA, peaksB)*0.3
	}

	if similarity < timingSimilarityThreshold {
		return Edge{}, false
	}

	return Edge{
		Analyzer:  TagBehavioural,
		MemberIDs: []uint64{a.ID, b.ID},
		Evidence: fmt.Sprintf("Behavioural pattern: matching message timing habits (%s similar)",
			formatPercent(similarity)),
		Details: map[string]any{
			"check":      "message_timing",
			"similarity": similarity,
			"peaks_a":    peaksA,
			"peaks_b":    peaksB,
		},
	}, true
}

// activityLevelEdge compares overall activity volume across five dimensions.
func activityLevelEdge(a, b *types.Member) (Edge, bool) {
	vecA := activityVector(a)
	vecB := activityVector(b)

	if isZeroVector(vecA) || isZeroVector(vecB) {
		return Edge{}, false
	}

	// Normalise each dimension by the pair's maximum so that one prolific
	// dimension does not drown out the rest.
	var distance float64

	for k := range vecA {
		scale := math.Max(math.Max(vecA[k], vecB[k]), 1)
		delta := (vecA[k] - vecB[k]) / scale
		distance += delta * delta
	}

	similarity := 1 / (1 + math.Sqrt(distance))

	if similarity < activityLevelThreshold {
		return Edge{}, false
	}

	return Edge{
		Analyzer:  TagBehavioural,
		MemberIDs: []uint64{a.ID, b.ID},
		Evidence: fmt.Sprintf("Behavioural pattern: activity level correlation (%s similar)",
			formatPercent(similarity)),
		Details: map[string]any{
			"check":      "activity_level",
			"similarity": similarity,
		},
	}, true
}

// communicationStyleEdge blends four style metrics with fixed weights.
func communicationStyleEdge(a, b *types.Member) (Edge, bool) {
	metrics := []struct {
		name   string
		weight float64
		a, b   float64
	}{
		{"avg_message_length", 0.30, a.AvgMessageLength, b.AvgMessageLength},
		{"reaction_ratio", 0.25, reactionRatio(a), reactionRatio(b)},
		{"activity_intensity", 0.25, activityIntensity(a), activityIntensity(b)},
		{"message_frequency", 0.20, messageFrequency(a), messageFrequency(b)},
	}

	var similarity float64

	for _, metric := range metrics {
		similarity += metric.weight * ratioSimilarity(metric.a, metric.b)
	}

	if similarity < styleSimilarityThreshold {
		return Edge{}, false
	}

	return Edge{
		Analyzer:  TagBehavioural,
		MemberIDs: []uint64{a.ID, b.ID},
		Evidence: fmt.Sprintf("Behavioural pattern: matching communication style (%s similar)",
			formatPercent(similarity)),
		Details: map[string]any{
			"check":      "communication_style",
			"similarity": similarity,
		},
	}, true
}

// channelUsageEdge flags pairs posting in nearly the same number of channels
// with nearly the same channel diversity.
func channelUsageEdge(a, b *types.Member) (Edge, bool) {
	channelDelta := math.Abs(float64(a.ChannelsUsed - b.ChannelsUsed))
	diversityDelta := math.Abs(channelDiversity(a) - channelDiversity(b))

	if channelDelta > 1 || diversityDelta >= 0.1 {
		return Edge{}, false
	}

	similarity := 1 - (channelDelta*0.2 + diversityDelta*2)

	if similarity < channelSimilarityThreshold {
		return Edge{}, false
	}

	return Edge{
		Analyzer:  TagBehavioural,
		MemberIDs: []uint64{a.ID, b.ID},
		Evidence: fmt.Sprintf("Behavioural pattern: near-identical channel usage (%s similar)",
			formatPercent(similarity)),
		Details: map[string]any{
			"check":      "channel_usage",
			"similarity": similarity,
		},
	}, true
}

// hourHistogram builds a normalised 24-bin hour-of-day distribution from
// message timestamps. The second return is false when no timestamps exist.
func hourHistogram(timestamps []time.Time) ([24]float64, bool) {
	var hist [24]float64

	if len(timestamps) == 0 {
		return hist, false
	}

	for _, ts := range timestamps {
		hist[ts.UTC().Hour()]++
	}

	total := float64(len(timestamps))
	for i := range hist {
		hist[i] /= total
	}

	return hist, true
}

// peakHours returns the hours whose share is at least peakFactor times the
// mean.
func peakHours(hist [24]float64) []int {
	var mean float64
	for _, share := range hist {
		mean += share
	}
	mean /= 24

	var peaks []int

	for hour, share := range hist {
		if share >= mean*peakFactor {
			peaks = append(peaks, hour)
		}
	}

	return peaks
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccard(a, b []int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	inA := make(map[int]struct{}, len(a))
	for _, v := range a {
		inA[v] = struct{}{}
	}

	intersection := 0
	union := make(map[int]struct{}, len(a)+len(b))

	for v := range inA {
		union[v] = struct{}{}
	}

	for _, v := range b {
		if _, ok := inA[v]; ok {
			intersection++
		}
		union[v] = struct{}{}
	}

	return float64(intersection) / float64(len(union))
}

// activityVector captures raw activity volume; the message length dimension
// is capped so that pasted walls of text do not dominate.
func activityVector(m *types.Member) [5]float64 {
	return [5]float64{
		float64(m.MessageCount7d),
		float64(m.MessageCount30d),
		float64(m.ChannelsUsed),
		math.Min(m.AvgMessageLength, 1000),
		float64(m.ReactionCount),
	}
}

func isZeroVector(vec [5]float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}

	return true
}

// ratioSimilarity returns min/max of two non-negative metrics, treating a
// pair of zeros as identical and a single zero as fully dissimilar.
func ratioSimilarity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}

	if a == 0 || b == 0 {
		return 0
	}

	return math.Min(a, b) / math.Max(a, b)
}

func reactionRatio(m *types.Member) float64 {
	return float64(m.ReactionCount) / math.Max(float64(m.MessageCount30d), 1)
}

// activityIntensity is the member's 30-day volume spread over the channels
// they post in.
func activityIntensity(m *types.Member) float64 {
	return float64(m.MessageCount30d) / math.Max(float64(m.ChannelsUsed), 1)
}

// messageFrequency is the member's average daily volume over 30 days.
func messageFrequency(m *types.Member) float64 {
	return float64(m.MessageCount30d) / 30
}

func channelDiversity(m *types.Member) float64 {
	return float64(m.ChannelsUsed) / math.Max(float64(m.MessageCount30d), 1)
}

func formatPercent(similarity float64) string {
	return fmt.Sprintf("%.2f%%", similarity*100)
}
