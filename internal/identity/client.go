// Package identity is the gateway to the account system: email/password
// sign-up, sign-in, sign-out, and the "who is signed in" lookup. The
// session is persisted to a local file so it survives CLI invocations.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"gathr/internal/models"
)

// AuthError covers invalid credentials and session problems. It blocks
// the sign-in/out flow and is never retried automatically.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Client implements the identity gateway against the users collection.
type Client struct {
	users       *mongo.Collection
	secret      string
	sessionFile string
	logger      *slog.Logger
}

func New(users *mongo.Collection, secret, sessionFile string, logger *slog.Logger) *Client {
	return &Client{users: users, secret: secret, sessionFile: sessionFile, logger: logger}
}

// SignUp registers a new account and signs it in. The profile document
// is created with a default display name derived from the email and
// notifications enabled.
func (c *Client) SignUp(ctx context.Context, email, password string) (string, error) {
	if email == "" || !strings.Contains(email, "@") {
		return "", &AuthError{Op: "sign up", Err: fmt.Errorf("invalid email")}
	}
	if len(password) < 8 {
		return "", &AuthError{Op: "sign up", Err: fmt.Errorf("password must be at least 8 characters")}
	}

	n, err := c.users.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return "", &AuthError{Op: "sign up", Err: err}
	}
	if n > 0 {
		return "", &AuthError{Op: "sign up", Err: fmt.Errorf("email already registered")}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", &AuthError{Op: "sign up", Err: err}
	}

	now := time.Now()
	u := models.User{
		ID:                   uuid.New().String(),
		Email:                email,
		PasswordHash:         string(hash),
		Name:                 defaultName(email),
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := c.users.InsertOne(ctx, u); err != nil {
		return "", &AuthError{Op: "sign up", Err: err}
	}

	if err := c.startSession(u.ID); err != nil {
		return "", err
	}
	c.logger.Info("Signed up.", "userID", u.ID)
	return u.ID, nil
}

// SignIn verifies credentials and persists a fresh session.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var u models.User
	err := c.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		// same message for unknown email and bad password
		return "", &AuthError{Op: "sign in", Err: fmt.Errorf("invalid credentials")}
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", &AuthError{Op: "sign in", Err: fmt.Errorf("invalid credentials")}
	}

	if err := c.startSession(u.ID); err != nil {
		return "", err
	}
	c.logger.Info("Signed in.", "userID", u.ID)
	return u.ID, nil
}

// SignOut discards the persisted session. Signing out while already
// signed out is not an error.
func (c *Client) SignOut() error {
	if err := os.Remove(c.sessionFile); err != nil && !os.IsNotExist(err) {
		return &AuthError{Op: "sign out", Err: err}
	}
	return nil
}

// CurrentUserID returns the signed-in user id, or "" when there is no
// valid session.
func (c *Client) CurrentUserID() string {
	s, err := loadSession(c.sessionFile)
	if err != nil {
		return ""
	}
	cl, err := parseToken(s.Token, c.secret)
	if err != nil {
		c.logger.Debug("Stored session token rejected.", "error", err)
		return ""
	}
	return cl.UserID
}

func (c *Client) startSession(uid string) error {
	tok, err := makeToken(uid, c.secret)
	if err != nil {
		return &AuthError{Op: "start session", Err: err}
	}
	if err := saveSession(c.sessionFile, session{UserID: uid, Token: tok}); err != nil {
		return &AuthError{Op: "start session", Err: err}
	}
	return nil
}

// defaultName is the local part of the email, good enough until the user
// sets a display name.
func defaultName(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
