package timing

import "sort"

// followerWeight and engagementWeight are the best-posting-times weighting
// coefficients from spec.md §4.7: when a follower is posting is a leading
// indicator of when they are online at all, while raw engagement measures
// when they actually interact, so the two are blended rather than used
// independently.
const (
	followerWeight   = 0.6
	engagementWeight = 0.4
)

// HourScore is one hour's blended posting-time score.
type HourScore struct {
	Hour  int
	Score float64
}

// ScoreHours blends a follower-post histogram and an engagement histogram
// into a single 24-hour score curve, each independently normalized to its
// own maximum before blending so neither signal dominates purely because it
// has a larger raw count.
func ScoreHours(followerPosts, engagement [24]int64) [24]HourScore {
	normFollower := normalize(followerPosts)
	normEngagement := normalize(engagement)

	var scores [24]HourScore
	for h := 0; h < 24; h++ {
		scores[h] = HourScore{
			Hour:  h,
			Score: followerWeight*normFollower[h] + engagementWeight*normEngagement[h],
		}
	}
	return scores
}

func normalize(counts [24]int64) [24]float64 {
	var max int64
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	var out [24]float64
	if max == 0 {
		return out
	}
	for h, c := range counts {
		out[h] = float64(c) / float64(max)
	}
	return out
}

// PeakHours returns the top n hours by score, descending. Ties are broken
// by earlier hour.
func PeakHours(scores [24]HourScore, n int) []HourScore {
	sorted := make([]HourScore, 24)
	copy(sorted, scores[:])
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Hour < sorted[j].Hour
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Confidence classifies how much data backs a score curve by the total
// observations across all hours: "high" from 1000, "medium" from 500, and
// "low" below that, where the curve is mostly noise.
func Confidence(totalObservations int64) string {
	switch {
	case totalObservations < 500:
		return "low"
	case totalObservations < 1000:
		return "medium"
	default:
		return "high"
	}
}
