// Package store holds the client's in-memory view-models: the event list
// and the signed-in profile. Mutations are optimistic where the UI wins
// by it (delete, participation): the cache changes first, and a failed
// remote write restores the pre-mutation snapshot. Edits are
// confirm-then-merge: the gateway returns the updated document and the
// store merges it, so the cache never drifts from server truth.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gathr/internal/models"
)

// ErrNoSession rejects a mutating call made without a signed-in user.
// Distinguishable from a remote failure: no gateway call was made.
var ErrNoSession = errors.New("no signed-in user")

// toastTTL is how long a success toast stays up unless superseded.
const toastTTL = 3 * time.Second

// EventStore is the single writer of the in-memory event list. A mutex
// serializes its operations, so two in-flight mutations can never
// interleave on the cache or stomp each other's loading flag.
type EventStore struct {
	mu        sync.Mutex
	gw        EventGateway
	reminders Reminders
	logger    *slog.Logger

	userID  string
	events  []models.Event
	loading bool
	lastErr error
	filter  models.Category

	toastMsg   string
	toastSeq   uint64
	toastTimer *time.Timer
}

// NewEventStore builds an event store bound to a gateway. reminders may
// be nil when the host has no notification surface.
func NewEventStore(gw EventGateway, reminders Reminders, logger *slog.Logger) *EventStore {
	return &EventStore{gw: gw, reminders: reminders, logger: logger}
}

// SetCurrentUser injects the session's user id. The store never queries
// ambient identity state; whoever owns the session tells it who is
// signed in.
func (s *EventStore) SetCurrentUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Fetch replaces the cache wholesale with the server's event list. On
// failure the existing cache is left untouched and a load error is
// recorded. The loading flag is cleared on every exit path.
func (s *EventStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchLocked(ctx)
}

func (s *EventStore) fetchLocked(ctx context.Context) error {
	s.loading = true
	defer func() { s.loading = false }()

	evs, err := s.gw.FetchEvents(ctx)
	if err != nil {
		s.lastErr = fmt.Errorf("failed to load events: %w", err)
		return s.lastErr
	}
	s.events = evs
	s.lastErr = nil
	return nil
}

// LoadIfNeeded fetches only when the cache is empty. Not a real cache
// policy, just an avoid-redundant-initial-load convenience.
func (s *EventStore) LoadIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) > 0 {
		return nil
	}
	return s.fetchLocked(ctx)
}

// Add creates a new event owned by the current user, who is also its
// first attendee. An optional image is uploaded first; an upload failure
// aborts before any document write. On success the event is inserted
// locally in start-time order and a reminder is scheduled.
func (s *EventStore) Add(ctx context.Context, f models.EventFields, image []byte) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return models.Event{}, ErrNoSession
	}

	var imageURL, imagePath string
	if len(image) > 0 {
		url, path, err := s.gw.UploadEventImage(ctx, image)
		if err != nil {
			s.lastErr = fmt.Errorf("failed to upload image: %w", err)
			return models.Event{}, s.lastErr
		}
		imageURL, imagePath = url, path
	}

	now := time.Now()
	ev := models.Event{
		ID:          uuid.New().String(),
		UserID:      s.userID,
		Title:       f.Title,
		Description: f.Description,
		Date:        f.Date,
		Location:    f.Location,
		Category:    f.Category,
		AttendeeIDs: []string{s.userID},
		ImageURL:    imageURL,
		ImagePath:   imagePath,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.gw.AddEvent(ctx, ev); err != nil {
		s.lastErr = fmt.Errorf("failed to create event: %w", err)
		return models.Event{}, s.lastErr
	}

	s.insertSorted(ev)
	if s.reminders != nil {
		s.reminders.Schedule(ev)
	}
	s.lastErr = nil
	s.showToastLocked("Event created")
	return ev, nil
}

// Edit persists a field patch (and optional replacement image) and
// merges the gateway's updated document into the cache. The cached entry
// reflects the new fields the moment Edit returns. If the current user
// attends, the reminder is cancelled and rescheduled with the new timing.
func (s *EventStore) Edit(ctx context.Context, id string, f models.EventFields, newImage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.lastErr = fmt.Errorf("event %s is not in the cache", id)
		return s.lastErr
	}

	updated, err := s.gw.EditEvent(ctx, id, f, newImage)
	if err != nil {
		s.lastErr = fmt.Errorf("failed to update event: %w", err)
		return s.lastErr
	}

	ev := s.events[i].Clone()
	if updated != nil {
		ev = updated.Clone()
	} else {
		ev.Title = f.Title
		ev.Description = f.Description
		ev.Date = f.Date
		ev.Location = f.Location
		ev.Category = f.Category
		ev.Latitude = f.Latitude
		ev.Longitude = f.Longitude
	}
	s.events[i] = ev
	s.sortByDate()

	if s.reminders != nil && s.userID != "" && ev.HasAttendee(s.userID) {
		s.reminders.Cancel(id)
		s.reminders.Schedule(ev)
	}
	s.lastErr = nil
	return nil
}

// Delete is optimistic-first: the entry leaves the cache (and its
// reminder is cancelled) before the gateway call, and a success toast is
// shown. A remote failure rolls everything back: the event returns to
// its original index (or the end, if the list shrank), the reminder is
// rescheduled for attendees, and the toast is withdrawn.
func (s *EventStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.lastErr = fmt.Errorf("event %s is not in the cache", id)
		return s.lastErr
	}

	removed := s.events[i].Clone()
	s.events = append(s.events[:i], s.events[i+1:]...)
	if s.reminders != nil {
		s.reminders.Cancel(id)
	}
	s.showToastLocked("Event deleted")

	if err := s.gw.DeleteEvent(ctx, id); err != nil {
		if i > len(s.events) {
			i = len(s.events)
		}
		s.events = append(s.events[:i], append([]models.Event{removed}, s.events[i:]...)...)
		if s.reminders != nil && s.userID != "" && removed.HasAttendee(s.userID) {
			s.reminders.Schedule(removed)
		}
		s.clearToastLocked()
		s.lastErr = fmt.Errorf("failed to delete event: %w", err)
		return s.lastErr
	}

	s.lastErr = nil
	return nil
}

// ToggleParticipation flips the current user's membership on the event's
// attendee list, cache first. The join/leave direction sent to the
// gateway is derived from the locally computed post-toggle state, never
// re-read from the server. A remote failure restores the pre-toggle
// entry at its index.
func (s *EventStore) ToggleParticipation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return ErrNoSession
	}

	i := s.indexOf(id)
	if i < 0 {
		s.lastErr = fmt.Errorf("event %s is not in the cache", id)
		return s.lastErr
	}

	prev := s.events[i].Clone()
	next := prev.Clone()
	joining := !next.HasAttendee(s.userID)
	if joining {
		next.AttendeeIDs = append(next.AttendeeIDs, s.userID)
	} else {
		kept := next.AttendeeIDs[:0]
		for _, uid := range next.AttendeeIDs {
			if uid != s.userID {
				kept = append(kept, uid)
			}
		}
		next.AttendeeIDs = kept
	}
	s.events[i] = next

	if err := s.gw.UpdateParticipation(ctx, id, s.userID, joining); err != nil {
		s.events[i] = prev
		s.lastErr = fmt.Errorf("failed to update participation: %w", err)
		return s.lastErr
	}

	if s.reminders != nil {
		if joining {
			s.reminders.Schedule(next)
		} else {
			s.reminders.Cancel(id)
		}
	}
	s.lastErr = nil
	return nil
}

// IsOwner reports whether the current user owns the event. False when
// nobody is signed in.
func (s *EventStore) IsOwner(ev models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID != "" && ev.UserID == s.userID
}

// SetFilter restricts Events() to a single category.
func (s *EventStore) SetFilter(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = c
}

// ClearFilter removes the active category filter.
func (s *EventStore) ClearFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = ""
}

// Events returns a snapshot of the cache, narrowed by the active filter.
func (s *EventStore) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.events))
	for i := range s.events {
		if s.filter == "" || s.events[i].Category == s.filter {
			out = append(out, s.events[i].Clone())
		}
	}
	return out
}

// IsLoading reports whether a fetch is in progress.
func (s *EventStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last operation's error, nil after a success.
func (s *EventStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Toast returns the current transient success message, "" when none.
func (s *EventStore) Toast() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toastMsg
}

// ClearData resets the store to its initial empty state. Used on
// sign-out.
func (s *EventStore) ClearData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.events = nil
	s.filter = ""
	s.lastErr = nil
	s.loading = false
	s.clearToastLocked()
}

// showToastLocked publishes a success message with a timed auto-clear.
// The monotonic sequence ties the timer to its message: a newer toast
// supersedes the pending dismissal of an older one.
func (s *EventStore) showToastLocked(msg string) {
	s.toastSeq++
	seq := s.toastSeq
	s.toastMsg = msg
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.toastTimer = time.AfterFunc(toastTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.toastSeq == seq {
			s.toastMsg = ""
		}
	})
}

func (s *EventStore) clearToastLocked() {
	s.toastMsg = ""
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
}

func (s *EventStore) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *EventStore) insertSorted(ev models.Event) {
	i := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Date.After(ev.Date)
	})
	s.events = append(s.events[:i], append([]models.Event{ev}, s.events[i:]...)...)
}

func (s *EventStore) sortByDate() {
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Date.Before(s.events[j].Date)
	})
}
