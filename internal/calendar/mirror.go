package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studieplan/backend/internal/domain"
)

// SyncResult summarizes a batch of mirror attempts. Created and synced
// counts can legitimately differ; both are reported to the caller.
type SyncResult struct {
	Requested int
	Synced    int
}

type SyncState string

const (
	SyncAll     SyncState = "all"
	SyncPartial SyncState = "partial"
	SyncNone    SyncState = "none"
)

func (r SyncResult) State() SyncState {
	switch {
	case r.Requested == 0 || r.Synced == 0:
		return SyncNone
	case r.Synced == r.Requested:
		return SyncAll
	default:
		return SyncPartial
	}
}

type tokenSource interface {
	EnsureValid(ctx context.Context, userID string) (string, error)
}

type eventRefStore interface {
	SetOutlookEventID(ctx context.Context, id uuid.UUID, eventID string) error
}

// Mirror pushes local slot and reservation state into the external calendar.
// Every method is best-effort: it runs after the local transaction has
// committed, is bounded by a timeout, and never returns an error to the
// caller. Failures are logged and reflected in the returned SyncResult.
type Mirror struct {
	events  EventsAPI
	tokens  tokenSource
	refs    eventRefStore
	log     *slog.Logger
	timeout time.Duration
}

func NewMirror(events EventsAPI, tokens tokenSource, refs eventRefStore, log *slog.Logger, timeout time.Duration) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mirror{
		events:  events,
		tokens:  tokens,
		refs:    refs,
		log:     log.With(slog.String("component", "calendar.mirror")),
		timeout: timeout,
	}
}

// SlotsCreated mirrors freshly created slots onto the teacher's calendar.
// Each slot is independent; a slot that already carries an event reference is
// counted as synced without creating a duplicate remote event.
func (m *Mirror) SlotsCreated(ctx context.Context, teacherID, className string, blocks []domain.Timeblock) SyncResult {
	result := SyncResult{Requested: len(blocks)}
	if len(blocks) == 0 {
		return result
	}

	token, err := m.tokens.EnsureValid(ctx, teacherID)
	if err != nil {
		m.log.Warn("no usable calendar credential, skipping mirror",
			slog.String("teacher_id", teacherID), slog.Int("slots", len(blocks)))
		return result
	}

	for _, tb := range blocks {
		if tb.OutlookEventID != "" {
			result.Synced++
			continue
		}

		opCtx, cancel := context.WithTimeout(ctx, m.timeout)
		eventID, err := m.events.CreateEvent(opCtx, token, Event{
			Subject:   "Studiegesprek - " + className,
			Body:      "Studiegesprek tijdblok voor klas " + className,
			StartTime: tb.StartTime,
			EndTime:   tb.EndTime,
			Location:  tb.Location,
		})
		cancel()
		if err != nil {
			m.log.Warn("remote event create failed",
				slog.String("timeblock_id", tb.ID.String()), slog.Any("err", err))
			continue
		}

		if err := m.refs.SetOutlookEventID(ctx, tb.ID, eventID); err != nil {
			m.log.Warn("event reference persist failed",
				slog.String("timeblock_id", tb.ID.String()),
				slog.String("event_id", eventID), slog.Any("err", err))
			continue
		}
		result.Synced++
	}

	m.log.Info("slot mirror finished",
		slog.String("teacher_id", teacherID),
		slog.Int("requested", result.Requested),
		slog.Int("synced", result.Synced))
	return result
}

// SlotReserved retitles the teacher's remote event after a reservation and
// places a copy on the reserving student's own calendar. The student-side
// event is not tracked; it exists purely as a convenience.
func (m *Mirror) SlotReserved(ctx context.Context, tb domain.Timeblock, className, teacherName, studentID, studentName, studentEmail string) SyncResult {
	result := SyncResult{Requested: 1}

	if m.updateTeacherEvent(ctx, tb,
		"Gereserveerd - "+studentName,
		"Studiegesprek tijdblok voor klas "+className+"\n\nGereserveerd door: "+studentName+" ("+studentEmail+")") {
		result.Synced = 1
	}

	if token, err := m.tokens.EnsureValid(ctx, studentID); err == nil {
		opCtx, cancel := context.WithTimeout(ctx, m.timeout)
		_, err := m.events.CreateEvent(opCtx, token, Event{
			Subject:   "Studiegesprek - " + teacherName,
			Body:      "Studiegesprek met " + teacherName + " voor klas " + className,
			StartTime: tb.StartTime,
			EndTime:   tb.EndTime,
			Location:  tb.Location,
		})
		cancel()
		if err != nil {
			m.log.Warn("student event create failed",
				slog.String("timeblock_id", tb.ID.String()), slog.Any("err", err))
		}
	}

	return result
}

// SlotReleased reverts the teacher's remote event to its unreserved title
// after a cancellation.
func (m *Mirror) SlotReleased(ctx context.Context, tb domain.Timeblock, className string) SyncResult {
	result := SyncResult{Requested: 1}
	if m.updateTeacherEvent(ctx, tb,
		"Studiegesprek - "+className,
		"Studiegesprek tijdblok voor klas "+className) {
		result.Synced = 1
	}
	return result
}

// SlotUpdated pushes edited slot times and location to the remote event.
func (m *Mirror) SlotUpdated(ctx context.Context, tb domain.Timeblock) SyncResult {
	result := SyncResult{Requested: 1}
	if tb.OutlookEventID == "" {
		return result
	}

	token, err := m.tokens.EnsureValid(ctx, tb.TeacherID)
	if err != nil {
		return result
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err = m.events.UpdateEvent(opCtx, token, tb.OutlookEventID, EventPatch{
		StartTime: &tb.StartTime,
		EndTime:   &tb.EndTime,
		Location:  &tb.Location,
	})
	if err != nil {
		m.log.Warn("remote event update failed",
			slog.String("timeblock_id", tb.ID.String()), slog.Any("err", err))
		return result
	}
	result.Synced = 1
	return result
}

// SlotDeleted removes the remote event of a deleted slot.
func (m *Mirror) SlotDeleted(ctx context.Context, teacherID, eventID string) SyncResult {
	result := SyncResult{Requested: 1}
	if eventID == "" {
		return result
	}

	token, err := m.tokens.EnsureValid(ctx, teacherID)
	if err != nil {
		return result
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ok, err := m.events.DeleteEvent(opCtx, token, eventID)
	if err != nil || !ok {
		m.log.Warn("remote event delete failed",
			slog.String("event_id", eventID), slog.Any("err", err))
		return result
	}
	result.Synced = 1
	return result
}

func (m *Mirror) updateTeacherEvent(ctx context.Context, tb domain.Timeblock, subject, body string) bool {
	if tb.OutlookEventID == "" {
		m.log.Warn("no event reference for timeblock, skipping mirror",
			slog.String("timeblock_id", tb.ID.String()))
		return false
	}

	token, err := m.tokens.EnsureValid(ctx, tb.TeacherID)
	if err != nil {
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err = m.events.UpdateEvent(opCtx, token, tb.OutlookEventID, EventPatch{
		Subject: &subject,
		Body:    &body,
	})
	if err != nil {
		m.log.Warn("remote event update failed",
			slog.String("timeblock_id", tb.ID.String()), slog.Any("err", err))
		return false
	}
	return true
}
