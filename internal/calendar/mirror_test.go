package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studieplan/backend/internal/domain"
)

type fakeEvents struct {
	createFn func(ctx context.Context, token string, event Event) (string, error)
	updateFn func(ctx context.Context, token, eventID string, patch EventPatch) error
	deleteFn func(ctx context.Context, token, eventID string) (bool, error)

	created []Event
	patches []EventPatch
	deleted []string
}

func (f *fakeEvents) CreateEvent(ctx context.Context, token string, event Event) (string, error) {
	f.created = append(f.created, event)
	if f.createFn == nil {
		return "evt-" + uuid.NewString(), nil
	}
	return f.createFn(ctx, token, event)
}

func (f *fakeEvents) UpdateEvent(ctx context.Context, token, eventID string, patch EventPatch) error {
	f.patches = append(f.patches, patch)
	if f.updateFn == nil {
		return nil
	}
	return f.updateFn(ctx, token, eventID, patch)
}

func (f *fakeEvents) DeleteEvent(ctx context.Context, token, eventID string) (bool, error) {
	f.deleted = append(f.deleted, eventID)
	if f.deleteFn == nil {
		return true, nil
	}
	return f.deleteFn(ctx, token, eventID)
}

type fakeTokens struct {
	tokens map[string]string
}

func (f *fakeTokens) EnsureValid(ctx context.Context, userID string) (string, error) {
	token, ok := f.tokens[userID]
	if !ok {
		return "", ErrUnavailable
	}
	return token, nil
}

type fakeRefs struct {
	setFn func(ctx context.Context, id uuid.UUID, eventID string) error
	refs  map[uuid.UUID]string
}

func (f *fakeRefs) SetOutlookEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	if f.setFn != nil {
		return f.setFn(ctx, id, eventID)
	}
	if f.refs == nil {
		f.refs = map[uuid.UUID]string{}
	}
	f.refs[id] = eventID
	return nil
}

func mirrorBlocks(n int) []domain.Timeblock {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	blocks := make([]domain.Timeblock, n)
	for i := range blocks {
		blocks[i] = domain.Timeblock{
			ID:        uuid.New(),
			TeacherID: "t1",
			StartTime: start.Add(time.Duration(i) * 20 * time.Minute),
			EndTime:   start.Add(time.Duration(i+1) * 20 * time.Minute),
			Location:  "Lokaal 12",
			Status:    domain.TimeblockAvailable,
		}
	}
	return blocks
}

func teacherTokens() *fakeTokens {
	return &fakeTokens{tokens: map[string]string{"t1": "tok"}}
}

func TestSlotsCreated_MirrorsAllSlots(t *testing.T) {
	events := &fakeEvents{}
	refs := &fakeRefs{}
	m := NewMirror(events, teacherTokens(), refs, nil, time.Second)

	blocks := mirrorBlocks(3)
	result := m.SlotsCreated(context.Background(), "t1", "4B", blocks)

	if result.Requested != 3 || result.Synced != 3 {
		t.Fatalf("result = %+v, want 3/3", result)
	}
	if result.State() != SyncAll {
		t.Fatalf("state = %q, want all", result.State())
	}
	if len(refs.refs) != 3 {
		t.Fatalf("event references stored = %d, want 3", len(refs.refs))
	}
	for _, ev := range events.created {
		if ev.Subject != "Studiegesprek - 4B" {
			t.Fatalf("subject = %q", ev.Subject)
		}
	}
}

func TestSlotsCreated_SkipsAlreadyMirroredSlots(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	blocks := mirrorBlocks(2)
	blocks[0].OutlookEventID = "evt-existing"
	result := m.SlotsCreated(context.Background(), "t1", "4B", blocks)

	if result.Synced != 2 {
		t.Fatalf("synced = %d, want 2", result.Synced)
	}
	if len(events.created) != 1 {
		t.Fatalf("remote creates = %d, want 1", len(events.created))
	}
}

func TestSlotsCreated_NoCredentialSyncsNothing(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, &fakeTokens{}, &fakeRefs{}, nil, time.Second)

	result := m.SlotsCreated(context.Background(), "t1", "4B", mirrorBlocks(3))

	if result.Requested != 3 || result.Synced != 0 {
		t.Fatalf("result = %+v, want 3/0", result)
	}
	if result.State() != SyncNone {
		t.Fatalf("state = %q, want none", result.State())
	}
	if len(events.created) != 0 {
		t.Fatal("remote API reached without a credential")
	}
}

func TestSlotsCreated_PartialFailure(t *testing.T) {
	var calls int
	events := &fakeEvents{
		createFn: func(ctx context.Context, token string, event Event) (string, error) {
			calls++
			if calls == 2 {
				return "", errors.New("graph 503")
			}
			return "evt", nil
		},
	}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	result := m.SlotsCreated(context.Background(), "t1", "4B", mirrorBlocks(3))

	if result.Synced != 2 {
		t.Fatalf("synced = %d, want 2", result.Synced)
	}
	if result.State() != SyncPartial {
		t.Fatalf("state = %q, want partial", result.State())
	}
}

func TestSlotsCreated_RefPersistFailureCountsAsUnsynced(t *testing.T) {
	refs := &fakeRefs{
		setFn: func(ctx context.Context, id uuid.UUID, eventID string) error {
			return errors.New("db down")
		},
	}
	m := NewMirror(&fakeEvents{}, teacherTokens(), refs, nil, time.Second)

	result := m.SlotsCreated(context.Background(), "t1", "4B", mirrorBlocks(1))
	if result.Synced != 0 {
		t.Fatalf("synced = %d, want 0", result.Synced)
	}
}

func TestSlotReserved_RetitlesTeacherEventAndCopiesToStudent(t *testing.T) {
	events := &fakeEvents{}
	tokens := &fakeTokens{tokens: map[string]string{"t1": "tok-t", "s1": "tok-s"}}
	m := NewMirror(events, tokens, &fakeRefs{}, nil, time.Second)

	tb := mirrorBlocks(1)[0]
	tb.OutlookEventID = "evt-1"
	result := m.SlotReserved(context.Background(), tb, "4B", "Jansen", "s1", "Piet", "piet@school.nl")

	if result.Synced != 1 {
		t.Fatalf("synced = %d, want 1", result.Synced)
	}
	if len(events.patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(events.patches))
	}
	if got := *events.patches[0].Subject; got != "Gereserveerd - Piet" {
		t.Fatalf("teacher event subject = %q", got)
	}
	if len(events.created) != 1 {
		t.Fatalf("student events = %d, want 1", len(events.created))
	}
	if got := events.created[0].Subject; got != "Studiegesprek - Jansen" {
		t.Fatalf("student event subject = %q", got)
	}
}

func TestSlotReserved_StudentWithoutCredentialStillSyncs(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	tb := mirrorBlocks(1)[0]
	tb.OutlookEventID = "evt-1"
	result := m.SlotReserved(context.Background(), tb, "4B", "Jansen", "s1", "Piet", "piet@school.nl")

	if result.Synced != 1 {
		t.Fatalf("synced = %d, want 1", result.Synced)
	}
	if len(events.created) != 0 {
		t.Fatal("student event created without a credential")
	}
}

func TestSlotReleased_RevertsTitle(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	tb := mirrorBlocks(1)[0]
	tb.OutlookEventID = "evt-1"
	result := m.SlotReleased(context.Background(), tb, "4B")

	if result.Synced != 1 {
		t.Fatalf("synced = %d, want 1", result.Synced)
	}
	if got := *events.patches[0].Subject; got != "Studiegesprek - 4B" {
		t.Fatalf("subject = %q", got)
	}
}

func TestSlotReleased_WithoutEventRefSkips(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	result := m.SlotReleased(context.Background(), mirrorBlocks(1)[0], "4B")
	if result.Synced != 0 {
		t.Fatalf("synced = %d, want 0", result.Synced)
	}
	if len(events.patches) != 0 {
		t.Fatal("remote API reached without an event reference")
	}
}

func TestSlotDeleted_RemovesRemoteEvent(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	result := m.SlotDeleted(context.Background(), "t1", "evt-1")
	if result.Synced != 1 {
		t.Fatalf("synced = %d, want 1", result.Synced)
	}
	if len(events.deleted) != 1 || events.deleted[0] != "evt-1" {
		t.Fatalf("deleted = %v", events.deleted)
	}
}

func TestSlotDeleted_EmptyRefIsNoop(t *testing.T) {
	events := &fakeEvents{}
	m := NewMirror(events, teacherTokens(), &fakeRefs{}, nil, time.Second)

	result := m.SlotDeleted(context.Background(), "t1", "")
	if result.Synced != 0 {
		t.Fatalf("synced = %d, want 0", result.Synced)
	}
	if len(events.deleted) != 0 {
		t.Fatal("remote delete issued for empty reference")
	}
}
