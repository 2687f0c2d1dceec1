package domain

import "time"

const (
	MinSlotDuration = 5 * time.Minute
	MaxSlotDuration = 120 * time.Minute
)

// CandidateSlot is one interval produced by PartitionWindow. Candidates carry
// no identity; they become timeblocks only once persisted.
type CandidateSlot struct {
	StartTime time.Time
	EndTime   time.Time
}

// PartitionWindow splits [windowStart, windowEnd) into consecutive slots of
// exactly duration each, covering a prefix of the window. A trailing
// remainder shorter than duration is dropped; no partial slots are produced.
// The result is empty when the window is shorter than duration. Callers are
// expected to validate the window and duration bounds beforehand.
func PartitionWindow(windowStart, windowEnd time.Time, duration time.Duration) []CandidateSlot {
	if duration <= 0 || !windowStart.Before(windowEnd) {
		return nil
	}

	var out []CandidateSlot
	cursor := windowStart
	for !cursor.Add(duration).After(windowEnd) {
		out = append(out, CandidateSlot{
			StartTime: cursor,
			EndTime:   cursor.Add(duration),
		})
		cursor = cursor.Add(duration)
	}
	return out
}
