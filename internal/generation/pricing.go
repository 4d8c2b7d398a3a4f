package generation

// Credit prices by clip duration. The cost is captured on the job row at
// submission; refunds always use the captured value, never a recomputed one.
const (
	costShortClip = 50  // 5 second clips
	costLongClip  = 100 // 10 second clips
)

// Price resolves a requested duration to its credit cost. Unknown durations
// price as short clips; validation upstream restricts the accepted set.
func Price(duration string) int {
	if duration == "10" {
		return costLongClip
	}
	return costShortClip
}
