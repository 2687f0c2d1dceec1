package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TimeblockStatus is the stored status of a timeblock. "completed" is
// additionally derived at read time for past slots, see EffectiveStatus.
type TimeblockStatus string

const (
	TimeblockAvailable TimeblockStatus = "available"
	TimeblockReserved  TimeblockStatus = "reserved"
	TimeblockCompleted TimeblockStatus = "completed"
	TimeblockCancelled TimeblockStatus = "cancelled"
)

func (s TimeblockStatus) Valid() bool {
	switch s {
	case TimeblockAvailable, TimeblockReserved, TimeblockCompleted, TimeblockCancelled:
		return true
	}
	return false
}

// Timeblock is a single bookable interval owned by a teacher. OutlookEventID
// is set only after the slot has been mirrored into the external calendar.
type Timeblock struct {
	bun.BaseModel `bun:"table:timeblocks"`

	ID             uuid.UUID       `bun:"id,pk,type:uuid"`
	TeacherID      string          `bun:"teacher_id,notnull"`
	ClassID        uuid.UUID       `bun:"class_id,notnull,type:uuid"`
	StartTime      time.Time       `bun:"start_time,notnull"`
	EndTime        time.Time       `bun:"end_time,notnull"`
	Location       string          `bun:"location,notnull"`
	Status         TimeblockStatus `bun:"status,notnull"`
	OutlookEventID string          `bun:"outlook_event_id,nullzero"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull"`
}

func (t *Timeblock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			t.ID = id
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

// EffectiveStatus classifies a past available or reserved slot as completed.
// The stored status is never rewritten by the passage of time; only the
// purge sweep removes past slots, and only artifact-free ones.
func (t *Timeblock) EffectiveStatus(now time.Time) TimeblockStatus {
	if t.EndTime.Before(now) {
		switch t.Status {
		case TimeblockAvailable, TimeblockReserved:
			return TimeblockCompleted
		}
	}
	return t.Status
}

// Overlaps reports whether [start, end) intersects the timeblock's interval.
// Boundary equality is not overlap: back-to-back slots are allowed.
func (t *Timeblock) Overlaps(start, end time.Time) bool {
	return t.StartTime.Before(end) && t.EndTime.After(start)
}
