// Package reminder turns event timing and attendance into one-shot local
// notifications. Delivery itself is behind the Notifier interface; the
// scheduler only decides when, and for which event, to fire.
package reminder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gathr/internal/models"
)

// DefaultLead is how long before an event's start the reminder fires.
const DefaultLead = 30 * time.Minute

// Notifier delivers a reminder to the user. Fire-and-forget: the
// scheduler observes no return contract.
type Notifier interface {
	Notify(eventID, title, body string)
}

// Scheduler keeps at most one pending reminder per event id.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	notifier Notifier
	lead     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func New(logger *slog.Logger, notifier Notifier) *Scheduler {
	return &Scheduler{
		timers:   make(map[string]*time.Timer),
		notifier: notifier,
		lead:     DefaultLead,
		now:      time.Now,
		logger:   logger,
	}
}

// Schedule registers a reminder for the event, replacing any pending one
// under the same id. If the trigger time is already in the past the call
// is a silent no-op.
func (s *Scheduler) Schedule(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trigger := ev.Date.Add(-s.lead)
	wait := trigger.Sub(s.now())
	if wait <= 0 {
		s.logger.Debug("Reminder trigger already passed, skipping.", "eventID", ev.ID)
		return
	}

	if t, ok := s.timers[ev.ID]; ok {
		t.Stop()
	}

	id, title, body := ev.ID, ev.Title, reminderBody(ev)
	s.timers[id] = time.AfterFunc(wait, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.notifier.Notify(id, title, body)
	})
	s.logger.Debug("Reminder scheduled.", "eventID", id, "trigger", trigger)
}

// Cancel removes any pending reminder for the event id. Safe to call
// when none exists.
func (s *Scheduler) Cancel(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[eventID]; ok {
		t.Stop()
		delete(s.timers, eventID)
	}
}

// Pending reports how many reminders are currently scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending reminder.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func reminderBody(ev models.Event) string {
	if ev.Location != "" {
		return fmt.Sprintf("Starts at %s in %s", ev.Date.Format(time.Kitchen), ev.Location)
	}
	return fmt.Sprintf("Starts at %s", ev.Date.Format(time.Kitchen))
}
