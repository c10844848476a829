package models

import "time"

// User is the profile of a signed-up account. The ID is the identity
// provider's opaque user id; Email is fixed at sign-up.
type User struct {
	ID                   string    `bson:"_id" json:"id"`
	Email                string    `bson:"email" json:"email"`
	PasswordHash         string    `bson:"password_hash" json:"-"`
	Name                 string    `bson:"name" json:"name"`
	ImageURL             string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	ImagePath            string    `bson:"image_path,omitempty" json:"image_path,omitempty"`
	NotificationsEnabled bool      `bson:"notifications_enabled" json:"notifications_enabled"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updated_at"`
}
