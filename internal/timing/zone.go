package timing

// Zone is a contiguous, wraparound-capable block of hours and the total
// participation observed inside it.
type Zone struct {
	StartHour int
	Width     int
	Total     int64
}

// windowWidths are the candidate zone widths from spec.md §4.7: the "zone
// of maximum participation" is defined as the best-scoring window among
// these sizes, not a single fixed width, since a tenant's audience may
// cluster tightly (3h) or loosely (6h).
var windowWidths = []int{3, 4, 5, 6}

// MaxParticipationZone scans every (width, start hour) combination over a
//24-bucket circular histogram and returns the window with the highest
// total. Ties are broken by preferring the narrowest width, then the
// earliest start hour, so the result is deterministic.
func MaxParticipationZone(hourly [24]int64) Zone {
	best := Zone{StartHour: 0, Width: windowWidths[0], Total: -1}

	for _, width := range windowWidths {
		for start := 0; start < 24; start++ {
			total := circularSum(hourly, start, width)
			if total > best.Total {
				best = Zone{StartHour: start, Width: width, Total: total}
			}
		}
	}
	return best
}

func circularSum(hourly [24]int64, start, width int) int64 {
	var sum int64
	for i := 0; i < width; i++ {
		sum += hourly[(start+i)%24]
	}
	return sum
}
