package remote

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gathr/internal/models"
)

// SaveUser writes the full profile document, creating it if absent.
func (c *Client) SaveUser(ctx context.Context, u models.User) error {
	_, err := c.users().ReplaceOne(ctx, bson.M{"_id": u.ID}, u,
		options.Replace().SetUpsert(true))
	if err != nil {
		return &DataError{Op: "save user", Err: err}
	}
	return nil
}

// FetchUser loads a profile by id. A missing profile is (nil, nil), not
// an error; the caller decides what absence means.
func (c *Client) FetchUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := c.users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, &DataError{Op: "fetch user", Err: err}
	}
	return &u, nil
}

// UploadProfileImage stores profile image bytes and returns the public
// URL. The storage path is not tracked for profile images; replaced
// files are left in place (matching the product's observed behavior).
func (c *Client) UploadProfileImage(ctx context.Context, data []byte) (string, error) {
	url, _, err := c.uploadImage("profile-image", data)
	return url, err
}
