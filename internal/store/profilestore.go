package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gathr/internal/models"
)

// ErrNoProfile rejects a profile update before any profile was loaded.
var ErrNoProfile = errors.New("no profile loaded")

// ProfileStore caches the signed-in user's profile. Unlike the event
// store, updates are confirm-then-apply: the cached profile only changes
// after the gateway accepts the write.
type ProfileStore struct {
	mu      sync.Mutex
	gw      UserGateway
	logger  *slog.Logger
	user    *models.User
	loading bool
	lastErr error
}

func NewProfileStore(gw UserGateway, logger *slog.Logger) *ProfileStore {
	return &ProfileStore{gw: gw, logger: logger}
}

// Fetch loads the profile for the given user id. On failure an already
// loaded profile is retained, not cleared.
func (s *ProfileStore) Fetch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = true
	defer func() { s.loading = false }()

	u, err := s.gw.FetchUser(ctx, id)
	if err != nil {
		s.lastErr = fmt.Errorf("failed to load profile: %w", err)
		return s.lastErr
	}
	if u == nil {
		s.lastErr = fmt.Errorf("profile %s not found", id)
		return s.lastErr
	}
	s.user = u
	s.lastErr = nil
	return nil
}

// Update persists a new display name, notification preference, and
// optionally a new profile image, then applies the confirmed result.
// The id and email of the loaded profile are preserved. On failure the
// cached profile is left unchanged.
func (s *ProfileStore) Update(ctx context.Context, name string, notificationsEnabled bool, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNoProfile
	}

	updated := *s.user
	if len(image) > 0 {
		url, err := s.gw.UploadProfileImage(ctx, image)
		if err != nil {
			s.lastErr = fmt.Errorf("failed to upload profile image: %w", err)
			return s.lastErr
		}
		updated.ImageURL = url
	}
	updated.Name = name
	updated.NotificationsEnabled = notificationsEnabled
	updated.UpdatedAt = time.Now()

	if err := s.gw.SaveUser(ctx, updated); err != nil {
		s.lastErr = fmt.Errorf("failed to save profile: %w", err)
		return s.lastErr
	}

	s.user = &updated
	s.lastErr = nil
	return nil
}

// User returns a copy of the cached profile, or nil when none is loaded.
func (s *ProfileStore) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsLoading reports whether a fetch is in progress.
func (s *ProfileStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last operation's error, nil after a success.
func (s *ProfileStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Clear drops the cached profile. Used on sign-out.
func (s *ProfileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.lastErr = nil
	s.loading = false
}
