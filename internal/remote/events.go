package remote

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gathr/internal/models"
)

// FetchEvents returns the full event set, ordered by start time ascending.
func (c *Client) FetchEvents(ctx context.Context) ([]models.Event, error) {
	cur, err := c.events().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, &DataError{Op: "fetch events", Err: err}
	}
	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, &DataError{Op: "decode events", Err: err}
	}
	return out, nil
}

// AddEvent persists a freshly created event document.
func (c *Client) AddEvent(ctx context.Context, ev models.Event) error {
	if _, err := c.events().InsertOne(ctx, ev); err != nil {
		return &DataError{Op: "add event", Err: err}
	}
	return nil
}

// EditEvent applies a field patch to an event and returns the updated
// document, so the caller can merge it into its cache without a full
// refetch. If newImage is non-nil the previous image is deleted and the
// new one uploaded before the document write; an upload failure aborts
// the edit, a delete failure of the old file is logged and swallowed.
func (c *Client) EditEvent(ctx context.Context, id string, f models.EventFields, newImage []byte) (*models.Event, error) {
	set := bson.M{
		"title":       f.Title,
		"description": f.Description,
		"date":        f.Date,
		"location":    f.Location,
		"category":    f.Category,
		"latitude":    f.Latitude,
		"longitude":   f.Longitude,
		"updated_at":  time.Now(),
	}

	if newImage != nil {
		var prev models.Event
		err := c.events().FindOne(ctx, bson.M{"_id": id}).Decode(&prev)
		if err != nil {
			return nil, &DataError{Op: "load event for image replace", Err: err}
		}
		if prev.ImagePath != "" {
			if err := c.deleteImage(prev.ImagePath); err != nil {
				c.logger.Warn("Could not delete replaced event image.", "path", prev.ImagePath, "error", err)
			}
		}
		url, path, err := c.uploadImage("event-image", newImage)
		if err != nil {
			return nil, err
		}
		set["image_url"] = url
		set["image_path"] = path
	}

	var updated models.Event
	err := c.events().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, &DataError{Op: "edit event", Err: err}
	}
	return &updated, nil
}

// DeleteEvent removes the event document and its stored image, if any.
// Image cleanup failures are logged and swallowed; the document delete
// is what the operation stands or falls on.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	var ev models.Event
	err := c.events().FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	switch {
	case err == mongo.ErrNoDocuments:
		// already gone
	case err != nil:
		return &DataError{Op: "load event for delete", Err: err}
	case ev.ImagePath != "":
		if err := c.deleteImage(ev.ImagePath); err != nil {
			c.logger.Warn("Could not delete event image.", "path", ev.ImagePath, "error", err)
		}
	}

	if _, err := c.events().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return &DataError{Op: "delete event", Err: err}
	}
	return nil
}

// UpdateParticipation adds or removes a user on the attendee list.
func (c *Client) UpdateParticipation(ctx context.Context, eventID, userID string, joining bool) error {
	update := bson.M{
		"$pull": bson.M{"attendee_ids": userID},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	if joining {
		update = bson.M{
			"$addToSet": bson.M{"attendee_ids": userID},
			"$set":      bson.M{"updated_at": time.Now()},
		}
	}
	res, err := c.events().UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return &DataError{Op: "update participation", Err: err}
	}
	if res.MatchedCount == 0 {
		return &DataError{Op: "update participation", Err: mongo.ErrNoDocuments}
	}
	return nil
}

// UploadEventImage stores event image bytes and returns its public URL
// and storage path.
func (c *Client) UploadEventImage(ctx context.Context, data []byte) (string, string, error) {
	return c.uploadImage("event-image", data)
}
