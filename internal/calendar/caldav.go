package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"gathr/internal/models"
)

// basicAuthTransport adds Basic Auth and a client identifier to every
// request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "gathr/1.0")
	return t.Transport.RoundTrip(req)
}

// Publisher pushes events to a calendar on a CalDAV server, one .ics
// object per event keyed by the event id.
type Publisher struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarURL  string
}

// NewPublisher connects to the CalDAV endpoint and locates the calendar
// with the given display name.
func NewPublisher(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string) (*Publisher, error) {
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	p := &Publisher{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
	}

	calendarURL, err := p.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar %q: %w", calendarName, err)
	}
	p.calendarURL = calendarURL
	logger.Info("Found CalDAV calendar.", "url", calendarURL)
	return p, nil
}

// Publish writes every given event to the calendar, continuing past
// per-event failures. Returns the first error encountered, if any.
func (p *Publisher) Publish(ctx context.Context, events []models.Event, lead time.Duration) error {
	var firstErr error
	for _, ev := range events {
		if err := p.publishOne(ctx, ev, lead); err != nil {
			p.logger.Error("Failed to publish event.", "title", ev.Title, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.logger.Info("Published event.", "title", ev.Title)
	}
	return firstErr
}

func (p *Publisher) publishOne(ctx context.Context, ev models.Event, lead time.Duration) error {
	cal := newCalendar([]models.Event{ev}, lead)

	// object path must be relative to the endpoint for the webdav client
	objectPath := path.Join(strings.TrimPrefix(p.calendarURL, p.endpoint), fmt.Sprintf("%s.ics", ev.ID))

	writer, err := p.webdavClient.Create(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to create calendar object: %w", err)
	}
	defer writer.Close()

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar object: %w", err)
	}
	return nil
}

func (p *Publisher) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := p.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := p.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := p.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return fmt.Sprintf("%s%s", strings.TrimSuffix(p.endpoint, "/"), cal.Path), nil
		}
	}
	return "", fmt.Errorf("no calendar named %q", name)
}
