package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"gathr/internal/models"
)

// fakeGateway is a scriptable EventGateway. Unset hooks succeed; every
// call is recorded so tests can assert what did (or did not) hit remote.
type fakeGateway struct {
	calls []string

	fetch  func(ctx context.Context) ([]models.Event, error)
	add    func(ctx context.Context, ev models.Event) error
	edit   func(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error)
	del    func(ctx context.Context, id string) error
	part   func(ctx context.Context, eventID, userID string, joining bool) error
	upload func(ctx context.Context, data []byte) (string, string, error)
}

func (g *fakeGateway) FetchEvents(ctx context.Context) ([]models.Event, error) {
	g.calls = append(g.calls, "fetch")
	if g.fetch != nil {
		return g.fetch(ctx)
	}
	return nil, nil
}

func (g *fakeGateway) AddEvent(ctx context.Context, ev models.Event) error {
	g.calls = append(g.calls, "add")
	if g.add != nil {
		return g.add(ctx, ev)
	}
	return nil
}

func (g *fakeGateway) EditEvent(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error) {
	g.calls = append(g.calls, "edit")
	if g.edit != nil {
		return g.edit(ctx, id, f, newImage)
	}
	return nil, nil
}

func (g *fakeGateway) DeleteEvent(ctx context.Context, id string) error {
	g.calls = append(g.calls, "delete")
	if g.del != nil {
		return g.del(ctx, id)
	}
	return nil
}

func (g *fakeGateway) UpdateParticipation(ctx context.Context, eventID, userID string, joining bool) error {
	g.calls = append(g.calls, "participation")
	if g.part != nil {
		return g.part(ctx, eventID, userID, joining)
	}
	return nil
}

func (g *fakeGateway) UploadEventImage(ctx context.Context, data []byte) (string, string, error) {
	g.calls = append(g.calls, "upload")
	if g.upload != nil {
		return g.upload(ctx, data)
	}
	return "http://files/img", "img", nil
}

type fakeReminders struct {
	scheduled []string
	cancelled []string
}

func (r *fakeReminders) Schedule(ev models.Event) { r.scheduled = append(r.scheduled, ev.ID) }
func (r *fakeReminders) Cancel(id string)         { r.cancelled = append(r.cancelled, id) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvents() []models.Event {
	base := time.Now().Add(24 * time.Hour)
	return []models.Event{
		{ID: "e1", UserID: "owner", Title: "First", Date: base, Category: models.CategoryMusic, AttendeeIDs: []string{"owner"}},
		{ID: "e2", UserID: "owner", Title: "Second", Date: base.Add(time.Hour), Category: models.CategoryTech, AttendeeIDs: []string{"owner", "u1"}},
		{ID: "e3", UserID: "u2", Title: "Third", Date: base.Add(2 * time.Hour), Category: models.CategoryMusic, AttendeeIDs: []string{"u2"}},
	}
}

// seeded returns a store whose cache already holds testEvents.
func seeded(t *testing.T, gw *fakeGateway, rem Reminders, userID string) *EventStore {
	t.Helper()
	events := testEvents()
	prevFetch := gw.fetch
	gw.fetch = func(ctx context.Context) ([]models.Event, error) { return events, nil }
	s := NewEventStore(gw, rem, testLogger())
	s.SetCurrentUser(userID)
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	gw.fetch = prevFetch
	gw.calls = nil
	return s
}

func TestFetchReplacesCache(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	if got := len(s.Events()); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	if s.IsLoading() {
		t.Error("loading should be false after fetch")
	}
	if s.Err() != nil {
		t.Errorf("unexpected error: %v", s.Err())
	}
}

func TestFetchFailureLeavesCache(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	gw.fetch = func(ctx context.Context) ([]models.Event, error) {
		return nil, errors.New("boom")
	}
	if err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	if got := len(s.Events()); got != 3 {
		t.Errorf("cache should be untouched, got %d events", got)
	}
	if s.Err() == nil || s.Err().Error() == "" {
		t.Error("expected a non-empty error message")
	}
	if s.IsLoading() {
		t.Error("loading must be false after a failed fetch")
	}
}

func TestLoadIfNeededSkipsWarmCache(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	if err := s.LoadIfNeeded(context.Background()); err != nil {
		t.Fatalf("load if needed: %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no gateway calls on warm cache, got %v", gw.calls)
	}
}

func TestAddWithoutSession(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	_, err := s.Add(context.Background(), models.EventFields{Title: "New"}, nil)
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no gateway calls, got %v", gw.calls)
	}
	if got := len(s.Events()); got != 3 {
		t.Errorf("cache should be unchanged, got %d events", got)
	}
}

func TestAddSeedsAttendeesAndSortsIn(t *testing.T) {
	gw := &fakeGateway{}
	rem := &fakeReminders{}
	s := seeded(t, gw, rem, "u1")

	existing := s.Events()
	// between e1 and e2
	date := existing[0].Date.Add(30 * time.Minute)

	ev, err := s.Add(context.Background(), models.EventFields{Title: "New", Date: date, Category: models.CategoryFood}, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected a generated event id")
	}
	if ev.UserID != "u1" {
		t.Errorf("owner should be the session user, got %q", ev.UserID)
	}
	if len(ev.AttendeeIDs) != 1 || ev.AttendeeIDs[0] != "u1" {
		t.Errorf("attendees should seed to the creator, got %v", ev.AttendeeIDs)
	}

	got := s.Events()
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	if got[1].ID != ev.ID {
		t.Errorf("expected new event at index 1, found %q there", got[1].ID)
	}
	if len(rem.scheduled) != 1 || rem.scheduled[0] != ev.ID {
		t.Errorf("expected a reminder for the new event, got %v", rem.scheduled)
	}
}

func TestAddImageUploadFailureAborts(t *testing.T) {
	gw := &fakeGateway{
		upload: func(ctx context.Context, data []byte) (string, string, error) {
			return "", "", errors.New("storage down")
		},
	}
	s := seeded(t, gw, nil, "u1")

	_, err := s.Add(context.Background(), models.EventFields{Title: "New", Date: time.Now()}, []byte{1, 2})
	if err == nil {
		t.Fatal("expected upload error")
	}
	for _, call := range gw.calls {
		if call == "add" {
			t.Fatal("document write must not happen after a failed upload")
		}
	}
}

func TestEditPatchVisibleImmediately(t *testing.T) {
	gw := &fakeGateway{
		edit: func(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error) {
			// server echoes the updated document
			ev := testEvents()[0]
			ev.Title = f.Title
			ev.Date = f.Date
			ev.ImageURL = "http://files/new"
			ev.ImagePath = "new"
			return &ev, nil
		},
	}
	s := seeded(t, gw, nil, "owner")

	orig := s.Events()[0]
	err := s.Edit(context.Background(), "e1", models.EventFields{
		Title: "Renamed", Date: orig.Date, Category: orig.Category,
	}, []byte{1})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	got, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" {
		t.Errorf("cached title must reflect the edit immediately, got %q", got.Title)
	}
	if got.ImageURL != "http://files/new" {
		t.Errorf("cached image must reflect the confirmed document, got %q", got.ImageURL)
	}
}

func TestEditLocalPatchWhenNoDocumentReturned(t *testing.T) {
	gw := &fakeGateway{} // edit hook unset: returns (nil, nil)
	s := seeded(t, gw, nil, "owner")

	orig := s.Events()[0]
	f := models.EventFields{
		Title: "Patched", Description: "d", Date: orig.Date.Add(3 * time.Hour),
		Location: "elsewhere", Category: models.CategoryArt,
	}
	if err := s.Edit(context.Background(), "e1", f, nil); err != nil {
		t.Fatalf("edit: %v", err)
	}

	got, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Patched" || got.Category != models.CategoryArt || got.Location != "elsewhere" {
		t.Errorf("local patch not applied: %+v", got)
	}
	// the date moved past e2/e3, so the entry must have been re-sorted
	if s.Events()[2].ID != "e1" {
		t.Errorf("expected e1 re-sorted to index 2, got order %v", ids(s.Events()))
	}
}

func TestEditFailureSetsError(t *testing.T) {
	gw := &fakeGateway{
		edit: func(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error) {
			return nil, errors.New("boom")
		},
	}
	s := seeded(t, gw, nil, "owner")

	if err := s.Edit(context.Background(), "e1", models.EventFields{Title: "X"}, nil); err == nil {
		t.Fatal("expected edit error")
	}
	got, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "First" {
		t.Errorf("cache must be untouched on a failed edit, got title %q", got.Title)
	}
	if s.Err() == nil {
		t.Error("expected error recorded")
	}
}

func TestEditReschedulesReminderForAttendee(t *testing.T) {
	gw := &fakeGateway{}
	rem := &fakeReminders{}
	s := seeded(t, gw, rem, "u1")

	// u1 attends e2 but not e1
	if err := s.Edit(context.Background(), "e1", fieldsOf(s, t, "e1"), nil); err != nil {
		t.Fatalf("edit e1: %v", err)
	}
	if len(rem.scheduled) != 0 {
		t.Errorf("no reminder expected for a non-attended event, got %v", rem.scheduled)
	}

	if err := s.Edit(context.Background(), "e2", fieldsOf(s, t, "e2"), nil); err != nil {
		t.Fatalf("edit e2: %v", err)
	}
	if len(rem.cancelled) != 1 || rem.cancelled[0] != "e2" {
		t.Errorf("expected cancel before reschedule, got %v", rem.cancelled)
	}
	if len(rem.scheduled) != 1 || rem.scheduled[0] != "e2" {
		t.Errorf("expected reschedule of e2, got %v", rem.scheduled)
	}
}

func TestDeleteOptimisticSuccess(t *testing.T) {
	gw := &fakeGateway{}
	rem := &fakeReminders{}
	s := seeded(t, gw, rem, "owner")

	if err := s.Delete(context.Background(), "e2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(s.Events()); got != 2 {
		t.Errorf("expected 2 events, got %d", got)
	}
	if len(rem.cancelled) != 1 || rem.cancelled[0] != "e2" {
		t.Errorf("expected reminder cancelled, got %v", rem.cancelled)
	}
	if s.Toast() == "" {
		t.Error("expected a success toast")
	}
}

func TestDeleteRollbackOnFailure(t *testing.T) {
	gw := &fakeGateway{
		del: func(ctx context.Context, id string) error { return errors.New("boom") },
	}
	s := seeded(t, gw, nil, "owner")
	before := s.Events()

	if err := s.Delete(context.Background(), "e2"); err == nil {
		t.Fatal("expected delete error")
	}

	after := s.Events()
	if len(after) != len(before) {
		t.Fatalf("expected cache length %d after rollback, got %d", len(before), len(after))
	}
	if after[1].ID != "e2" {
		t.Errorf("expected e2 restored at index 1, got order %v", ids(after))
	}
	if after[1].Title != before[1].Title || len(after[1].AttendeeIDs) != len(before[1].AttendeeIDs) {
		t.Error("restored event must equal the original by value")
	}
	if s.Err() == nil {
		t.Error("expected error recorded")
	}
	if s.Toast() != "" {
		t.Error("optimistic toast must be withdrawn on rollback")
	}
}

func TestDeleteRollbackReschedulesAttendeeReminder(t *testing.T) {
	gw := &fakeGateway{
		del: func(ctx context.Context, id string) error { return errors.New("boom") },
	}
	rem := &fakeReminders{}
	s := seeded(t, gw, rem, "u1")

	if err := s.Delete(context.Background(), "e2"); err == nil {
		t.Fatal("expected delete error")
	}
	if len(rem.scheduled) != 1 || rem.scheduled[0] != "e2" {
		t.Errorf("expected reminder restored after rollback, got %v", rem.scheduled)
	}
}

func TestToggleParticipationPair(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "u3")

	before, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := s.ToggleParticipation(context.Background(), "e1"); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
	}

	after, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.AttendeeIDs) != len(before.AttendeeIDs) {
		t.Errorf("an even number of toggles must restore membership: before %v after %v",
			before.AttendeeIDs, after.AttendeeIDs)
	}
	if after.HasAttendee("u3") {
		t.Error("u3 should not attend after toggle pair")
	}
}

func TestToggleDirectionFromLocalState(t *testing.T) {
	var joined []bool
	gw := &fakeGateway{
		part: func(ctx context.Context, eventID, userID string, joining bool) error {
			joined = append(joined, joining)
			return nil
		},
	}
	s := seeded(t, gw, nil, "u3")

	_ = s.ToggleParticipation(context.Background(), "e1")
	_ = s.ToggleParticipation(context.Background(), "e1")
	if len(joined) != 2 || joined[0] != true || joined[1] != false {
		t.Errorf("expected join then leave, got %v", joined)
	}
}

func TestToggleRollbackTargetsPreFailingCallState(t *testing.T) {
	fail := false
	gw := &fakeGateway{
		part: func(ctx context.Context, eventID, userID string, joining bool) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		},
	}
	s := NewEventStore(gw, nil, testLogger())
	s.SetCurrentUser("u1")
	gw.fetch = func(ctx context.Context) ([]models.Event, error) {
		return []models.Event{{ID: "a", Title: "EventA", Date: time.Now().Add(time.Hour)}}, nil
	}
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// first toggle succeeds: u1 joins
	if err := s.ToggleParticipation(context.Background(), "a"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	ev := s.Events()[0]
	if !ev.HasAttendee("u1") {
		t.Fatalf("expected u1 attending after first toggle, got %v", ev.AttendeeIDs)
	}

	// second toggle fails: rollback target is the post-first-toggle state
	fail = true
	if err := s.ToggleParticipation(context.Background(), "a"); err == nil {
		t.Fatal("expected toggle error")
	}
	ev = s.Events()[0]
	if !ev.HasAttendee("u1") {
		t.Errorf("rollback must restore the pre-failing-call state (u1 attending), got %v", ev.AttendeeIDs)
	}
	if s.Err() == nil {
		t.Error("expected error recorded")
	}
}

func TestToggleWithoutSession(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	err := s.ToggleParticipation(context.Background(), "e1")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no gateway calls, got %v", gw.calls)
	}
}

func TestIsOwner(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "owner")

	ev, err := findByID(s.Events(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsOwner(ev) {
		t.Error("owner should own e1")
	}

	other, err := findByID(s.Events(), "e3")
	if err != nil {
		t.Fatal(err)
	}
	if s.IsOwner(other) {
		t.Error("owner does not own e3")
	}

	s.SetCurrentUser("")
	if s.IsOwner(ev) {
		t.Error("nobody owns anything without a session")
	}
}

func TestCategoryFilter(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "")

	s.SetFilter(models.CategoryMusic)
	if got := len(s.Events()); got != 2 {
		t.Errorf("expected 2 music events, got %d", got)
	}
	s.ClearFilter()
	if got := len(s.Events()); got != 3 {
		t.Errorf("expected all 3 events after clearing filter, got %d", got)
	}
}

func TestClearData(t *testing.T) {
	gw := &fakeGateway{
		del: func(ctx context.Context, id string) error { return errors.New("boom") },
	}
	s := seeded(t, gw, nil, "owner")
	s.SetFilter(models.CategoryTech)
	_ = s.Delete(context.Background(), "e2") // leaves an error behind

	s.ClearData()
	if len(s.Events()) != 0 || s.Err() != nil || s.IsLoading() || s.Toast() != "" {
		t.Error("expected pristine store after ClearData")
	}
	// cleared session too: mutations are rejected again
	if _, err := s.Add(context.Background(), models.EventFields{Title: "X"}, nil); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after ClearData, got %v", err)
	}
}

func TestToastSuperseded(t *testing.T) {
	gw := &fakeGateway{}
	s := seeded(t, gw, nil, "owner")

	if err := s.Delete(context.Background(), "e1"); err != nil {
		t.Fatalf("delete e1: %v", err)
	}
	first := s.Toast()
	if err := s.Delete(context.Background(), "e2"); err != nil {
		t.Fatalf("delete e2: %v", err)
	}
	if s.Toast() == "" {
		t.Error("newer toast must be visible")
	}
	_ = first // both deletes show the same text; the point is the timer handoff

	// the superseded timer must not clear the newer message
	time.Sleep(20 * time.Millisecond)
	if s.Toast() == "" {
		t.Error("newer toast cleared prematurely")
	}
}

func findByID(events []models.Event, id string) (models.Event, error) {
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.Event{}, fmt.Errorf("event %s not found", id)
}

func ids(events []models.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func fieldsOf(s *EventStore, t *testing.T, id string) models.EventFields {
	t.Helper()
	ev, err := findByID(s.Events(), id)
	if err != nil {
		t.Fatal(err)
	}
	return models.EventFields{
		Title: ev.Title, Description: ev.Description, Date: ev.Date,
		Location: ev.Location, Category: ev.Category,
		Latitude: ev.Latitude, Longitude: ev.Longitude,
	}
}
