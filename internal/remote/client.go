package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client is the gateway to the remote system of record: a document
// database for events and users, and a blob bucket for images. It holds
// no client-visible state of its own.
type Client struct {
	db      *mongo.Database
	bucket  *gridfs.Bucket
	baseURL string
	logger  *slog.Logger
}

// NewClient connects to the document store and prepares the image bucket.
// baseURL is the public prefix under which uploaded images are served.
func NewClient(ctx context.Context, logger *slog.Logger, uri, dbName, baseURL string) (*Client, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("document store unreachable: %w", err)
	}

	db := cli.Database(dbName)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open image bucket: %w", err)
	}

	logger.Info("Connected to remote store.", "database", dbName)
	return &Client{db: db, bucket: bucket, baseURL: baseURL, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.db.Client().Disconnect(ctx)
}

func (c *Client) events() *mongo.Collection { return c.db.Collection("events") }
func (c *Client) users() *mongo.Collection  { return c.db.Collection("users") }

// Users returns the users collection for collaborators that manage
// accounts directly, such as the identity gateway.
func (c *Client) Users() *mongo.Collection { return c.users() }

// uploadImage stores raw image bytes in the bucket and returns the public
// URL plus the storage path needed to delete it later.
func (c *Client) uploadImage(kind string, data []byte) (url, path string, err error) {
	id, err := c.bucket.UploadFromStream(kind, bytes.NewReader(data))
	if err != nil {
		return "", "", &StorageError{Op: "upload " + kind, Err: err}
	}
	path = id.Hex()
	return fmt.Sprintf("%s/%s", c.baseURL, path), path, nil
}

// deleteImage removes a stored image by path. A missing file is treated
// as already deleted; any other failure is returned for the caller to
// decide whether to swallow.
func (c *Client) deleteImage(path string) error {
	id, err := primitive.ObjectIDFromHex(path)
	if err != nil {
		return &StorageError{Op: "delete image", Err: err}
	}
	if err := c.bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil
		}
		return &StorageError{Op: "delete image", Err: err}
	}
	return nil
}
