package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/store"
)

type TimeblockRepo struct {
	db *bun.DB
}

func NewTimeblockRepo(db *bun.DB) *TimeblockRepo {
	return &TimeblockRepo{db: db}
}

// CreateBatch inserts each candidate in its own transaction so that one
// conflicting slot does not roll back its siblings. The first failure is
// reported alongside whatever was created.
func (r *TimeblockRepo) CreateBatch(ctx context.Context, blocks []domain.Timeblock) ([]domain.Timeblock, error) {
	created := make([]domain.Timeblock, 0, len(blocks))
	var firstErr error

	for _, b := range blocks {
		b.Status = domain.TimeblockAvailable
		out, err := r.createOne(ctx, b)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created = append(created, out)
	}

	return created, firstErr
}

func (r *TimeblockRepo) createOne(ctx context.Context, b domain.Timeblock) (domain.Timeblock, error) {
	var out domain.Timeblock
	err := r.inTeacherTransaction(ctx, b.TeacherID, func(ctx context.Context, tx bun.Tx) error {
		m := b
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return mapTimeblockWriteError(err)
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Timeblock{}, err
	}
	return out, nil
}

func (r *TimeblockRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Timeblock, error) {
	var tb domain.Timeblock
	err := r.db.NewSelect().
		Model(&tb).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Timeblock{}, store.ErrNotFound
		}
		return domain.Timeblock{}, err
	}
	return tb, nil
}

func (r *TimeblockRepo) ListByTeacher(ctx context.Context, teacherID string, windowStart, windowEnd time.Time) ([]domain.Timeblock, error) {
	var rows []domain.Timeblock
	err := r.db.NewSelect().
		Model(&rows).
		Where("teacher_id = ?", teacherID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TimeblockRepo) ListByClasses(ctx context.Context, classIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Timeblock, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var rows []domain.Timeblock
	err := r.db.NewSelect().
		Model(&rows).
		Where("class_id IN (?)", bun.In(classIDs)).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TimeblockRepo) FindOverlapping(ctx context.Context, teacherID string, start, end time.Time) ([]domain.Timeblock, error) {
	var rows []domain.Timeblock
	err := r.db.NewSelect().
		Model(&rows).
		Where("teacher_id = ?", teacherID).
		Where("status != ?", domain.TimeblockCancelled).
		Where("start_time < ?", end).
		Where("end_time > ?", start).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition is the compare-and-swap that serializes concurrent reservation
// attempts: the UPDATE only takes effect while the row still holds `from`.
func (r *TimeblockRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.TimeblockStatus) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Timeblock)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		exists, err := r.db.NewSelect().
			Model((*domain.Timeblock)(nil)).
			Where("id = ?", id).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

func (r *TimeblockRepo) Update(ctx context.Context, tb domain.Timeblock) (domain.Timeblock, error) {
	var out domain.Timeblock
	err := r.inTeacherTransaction(ctx, tb.TeacherID, func(ctx context.Context, tx bun.Tx) error {
		m := tb
		res, err := tx.NewUpdate().
			Model(&m).
			Column("class_id", "start_time", "end_time", "location", "status", "updated_at").
			Where("id = ?", m.ID).
			Where("teacher_id = ?", m.TeacherID).
			Exec(ctx)
		if err != nil {
			return mapTimeblockWriteError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Timeblock{}, err
	}
	return out, nil
}

func (r *TimeblockRepo) SetOutlookEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Timeblock)(nil)).
		Set("outlook_event_id = ?", eventID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *TimeblockRepo) CanDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	var blocked bool
	err := r.db.NewRaw(`SELECT
		EXISTS (SELECT 1 FROM reservations WHERE timeblock_id = ?) OR
		EXISTS (SELECT 1 FROM summaries WHERE timeblock_id = ?)`, id, id).
		Scan(ctx, &blocked)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

func (r *TimeblockRepo) Delete(ctx context.Context, teacherID string, id uuid.UUID) error {
	return r.inTeacherTransaction(ctx, teacherID, func(ctx context.Context, tx bun.Tx) error {
		var blocked bool
		err := tx.NewRaw(`SELECT
			EXISTS (SELECT 1 FROM reservations WHERE timeblock_id = ?) OR
			EXISTS (SELECT 1 FROM summaries WHERE timeblock_id = ?)`, id, id).
			Scan(ctx, &blocked)
		if err != nil {
			return err
		}
		if blocked {
			return store.ErrConflict
		}

		res, err := tx.NewDelete().
			Model((*domain.Timeblock)(nil)).
			Where("id = ?", id).
			Where("teacher_id = ?", teacherID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (r *TimeblockRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*domain.Timeblock)(nil)).
		Where("end_time < ?", now).
		Where("NOT EXISTS (SELECT 1 FROM reservations res WHERE res.timeblock_id = timeblock.id)").
		Where("NOT EXISTS (SELECT 1 FROM summaries s WHERE s.timeblock_id = timeblock.id)").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *TimeblockRepo) inTeacherTransaction(ctx context.Context, teacherID string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTeacherSchedule(ctx, tx, teacherID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

// lockTeacherSchedule serializes schedule writes per teacher for the duration
// of the transaction. The overlap exclusion constraint remains the backstop
// for anything that bypasses the lock.
func lockTeacherSchedule(ctx context.Context, tx bun.Tx, teacherID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", teacherID).Exec(ctx)
	return err
}

func mapTimeblockWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23P01: timeblocks_no_overlap exclusion; 23505: (teacher_id,
		// start_time) unique backstop. Both mean a scheduling conflict.
		if pgErr.Code == "23P01" || pgErr.Code == "23505" {
			return store.ErrConflict
		}
	}
	return err
}
