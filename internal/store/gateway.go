package store

import (
	"context"

	"gathr/internal/models"
)

// EventGateway is the remote system of record for events. The store
// treats it as stateless pass-through; the server is the source of truth.
type EventGateway interface {
	FetchEvents(ctx context.Context) ([]models.Event, error)
	AddEvent(ctx context.Context, ev models.Event) error
	// EditEvent returns the updated document so the store can merge it
	// into the cache instead of refetching the whole list.
	EditEvent(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	UpdateParticipation(ctx context.Context, eventID, userID string, joining bool) error
	UploadEventImage(ctx context.Context, data []byte) (url, path string, err error)
}

// UserGateway is the remote system of record for profiles.
type UserGateway interface {
	SaveUser(ctx context.Context, u models.User) error
	FetchUser(ctx context.Context, id string) (*models.User, error)
	UploadProfileImage(ctx context.Context, data []byte) (string, error)
}

// Reminders is the slice of the reminder scheduler the stores drive as a
// side effect of successful mutations.
type Reminders interface {
	Schedule(ev models.Event)
	Cancel(eventID string)
}
