package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReservationStatus string

const ReservationConfirmed ReservationStatus = "confirmed"

// Reservation is a student's exclusive claim on one timeblock. At most one
// reservation row may exist per timeblock; cancellation deletes the row.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid"`
	TimeblockID uuid.UUID         `bun:"timeblock_id,notnull,type:uuid"`
	StudentID   string            `bun:"student_id,notnull"`
	Status      ReservationStatus `bun:"status,notnull"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}
