package models

import "time"

// Event represents a discoverable event users can RSVP to.
// This is the client-side representation; the same document shape is
// stored in the remote database.
type Event struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"` // owner, immutable after creation
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time `bson:"date" json:"date"`
	Location    string    `bson:"location,omitempty" json:"location,omitempty"`
	Category    Category  `bson:"category" json:"category"`
	AttendeeIDs []string  `bson:"attendee_ids" json:"attendee_ids"`
	ImageURL    string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	ImagePath   string    `bson:"image_path,omitempty" json:"image_path,omitempty"`
	Latitude    float64   `bson:"latitude" json:"latitude"`
	Longitude   float64   `bson:"longitude" json:"longitude"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// EventFields carries the mutable fields of an event. It is used both as
// the draft for creation and as the patch for edits.
type EventFields struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	Category    Category
	Latitude    float64
	Longitude   float64
}

// HasAttendee reports whether the given user is on the attendee list.
func (e *Event) HasAttendee(userID string) bool {
	for _, id := range e.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy of the event with its own attendee slice, so the
// caller can mutate the clone without aliasing the original.
func (e *Event) Clone() Event {
	out := *e
	if e.AttendeeIDs != nil {
		out.AttendeeIDs = append([]string(nil), e.AttendeeIDs...)
	}
	return out
}
