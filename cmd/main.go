package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"gathr/internal/calendar"
	"gathr/internal/geocode"
	"gathr/internal/identity"
	"gathr/internal/models"
	"gathr/internal/reminder"
	"gathr/internal/remote"
	"gathr/internal/store"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "gathr",
		Usage: "Discover events, RSVP, and get reminded before they start.",
		Commands: []*cli.Command{
			signupCommand(),
			loginCommand(),
			logoutCommand(),
			eventsCommand(),
			profileCommand(),
			calendarCommand(),
			remindCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// appEnv wires the gateways and stores a command needs.
type appEnv struct {
	logger   *slog.Logger
	remote   *remote.Client
	identity *identity.Client
	events   *store.EventStore
	profile  *store.ProfileStore
	reminder *reminder.Scheduler
	geocoder *geocode.Client
}

func newEnv(ctx context.Context) (*appEnv, func(), error) {
	logger := setupLogger(os.Getenv("LOG_LEVEL"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	rc, err := remote.NewClient(ctx, logger,
		envOr("MONGO_URI", "mongodb://localhost:27017"),
		envOr("MONGO_DB", "gathr"),
		envOr("FILES_BASE_URL", "http://localhost:8080/files"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reach remote store: %w", err)
	}
	cleanup := func() { _ = rc.Close(context.Background()) }

	id := identity.New(rc.Users(), secret, envOr("GATHR_SESSION_FILE", ".gathr-session.json"), logger)
	sched := reminder.New(logger, logNotifier{logger})

	events := store.NewEventStore(rc, sched, logger)
	events.SetCurrentUser(id.CurrentUserID())

	return &appEnv{
		logger:   logger,
		remote:   rc,
		identity: id,
		events:   events,
		profile:  store.NewProfileStore(rc, logger),
		reminder: sched,
		geocoder: geocode.New(logger, os.Getenv("NOMINATIM_URL")),
	}, cleanup, nil
}

func (e *appEnv) requireUser() (string, error) {
	uid := e.identity.CurrentUserID()
	if uid == "" {
		return "", fmt.Errorf("not signed in. Run 'gathr login' first")
	}
	return uid, nil
}

// logNotifier delivers reminders to the terminal and the log.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Notify(eventID, title, body string) {
	fmt.Printf("\n*** Reminder: %s — %s\n", title, body)
	n.logger.Info("Reminder fired.", "eventID", eventID, "title", title)
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account and sign in.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, cleanup, err := newEnv(c.Context)
			if err != nil {
				return err
			}
			defer cleanup()

			uid, err := env.identity.SignUp(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			fmt.Printf("Signed up as %s (user %s)\n", c.String("email"), uid)
			return nil
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with an existing account.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, cleanup, err := newEnv(c.Context)
			if err != nil {
				return err
			}
			defer cleanup()

			uid, err := env.identity.SignIn(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (user %s)\n", c.String("email"), uid)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and drop local state.",
		Action: func(c *cli.Context) error {
			env, cleanup, err := newEnv(c.Context)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := env.identity.SignOut(); err != nil {
				return err
			}
			env.events.ClearData()
			env.profile.Clear()
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Browse and manage events.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all events, soonest first.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "Only show events in this category."},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()

					if c.IsSet("category") {
						cat, err := models.ParseCategory(c.String("category"))
						if err != nil {
							return err
						}
						env.events.SetFilter(cat)
					}
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					uid := env.identity.CurrentUserID()
					for _, ev := range env.events.Events() {
						printEvent(ev, uid)
					}
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a new event.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "date", Required: true, Usage: "Start time, RFC3339 or '2006-01-02 15:04'."},
					&cli.StringFlag{Name: "location"},
					&cli.StringFlag{Name: "category", Value: string(models.CategoryOther)},
					&cli.StringFlag{Name: "image", Usage: "Path to an image file."},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					if _, err := env.requireUser(); err != nil {
						return err
					}

					fields, err := fieldsFromFlags(c, env, models.EventFields{Category: models.CategoryOther})
					if err != nil {
						return err
					}
					image, err := readImageFlag(c)
					if err != nil {
						return err
					}

					ev, err := env.events.Add(c.Context, fields, image)
					if err != nil {
						return err
					}
					fmt.Printf("Created event %s (%s)\n", ev.Title, ev.ID)
					return nil
				},
			},
			{
				Name:  "edit",
				Usage: "Edit an event you own. Unset flags keep current values.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "date"},
					&cli.StringFlag{Name: "location"},
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "image"},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					if _, err := env.requireUser(); err != nil {
						return err
					}
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					current, err := findEvent(env.events.Events(), c.String("id"))
					if err != nil {
						return err
					}
					if !env.events.IsOwner(current) {
						return fmt.Errorf("only the owner can edit an event")
					}

					fields, err := fieldsFromFlags(c, env, models.EventFields{
						Title:       current.Title,
						Description: current.Description,
						Date:        current.Date,
						Location:    current.Location,
						Category:    current.Category,
						Latitude:    current.Latitude,
						Longitude:   current.Longitude,
					})
					if err != nil {
						return err
					}
					image, err := readImageFlag(c)
					if err != nil {
						return err
					}

					if err := env.events.Edit(c.Context, current.ID, fields, image); err != nil {
						return err
					}
					fmt.Println("Event updated.")
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete an event you own.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					if err := env.events.Delete(c.Context, c.String("id")); err != nil {
						return err
					}
					fmt.Println(env.events.Toast())
					return nil
				},
			},
			{
				Name:  "join",
				Usage: "Toggle your participation in an event.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					uid, err := env.requireUser()
					if err != nil {
						return err
					}
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					if err := env.events.ToggleParticipation(c.Context, c.String("id")); err != nil {
						return err
					}
					ev, err := findEvent(env.events.Events(), c.String("id"))
					if err != nil {
						return err
					}
					if ev.HasAttendee(uid) {
						fmt.Printf("Joined %s.\n", ev.Title)
					} else {
						fmt.Printf("Left %s.\n", ev.Title)
					}
					return nil
				},
			},
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "View and update your profile.",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the signed-in profile.",
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					uid, err := env.requireUser()
					if err != nil {
						return err
					}

					if err := env.profile.Fetch(c.Context, uid); err != nil {
						return err
					}
					u := env.profile.User()
					fmt.Printf("%s <%s>\n", u.Name, u.Email)
					fmt.Printf("  notifications: %v\n", u.NotificationsEnabled)
					if u.ImageURL != "" {
						fmt.Printf("  image: %s\n", u.ImageURL)
					}
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update name, notification preference, or image.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.BoolFlag{Name: "notifications"},
					&cli.StringFlag{Name: "image", Usage: "Path to an image file."},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					uid, err := env.requireUser()
					if err != nil {
						return err
					}

					if err := env.profile.Fetch(c.Context, uid); err != nil {
						return err
					}
					current := env.profile.User()

					name := current.Name
					if c.IsSet("name") {
						name = c.String("name")
					}
					notifications := current.NotificationsEnabled
					if c.IsSet("notifications") {
						notifications = c.Bool("notifications")
					}
					image, err := readImageFlag(c)
					if err != nil {
						return err
					}

					if err := env.profile.Update(c.Context, name, notifications, image); err != nil {
						return err
					}
					fmt.Println("Profile updated.")
					return nil
				},
			},
		},
	}
}

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Export or publish the events you attend.",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write attending events to an iCalendar file.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "gathr.ics"},
				},
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					uid, err := env.requireUser()
					if err != nil {
						return err
					}
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					attending := calendar.Attending(env.events.Events(), uid)
					f, err := os.Create(c.String("out"))
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer f.Close()

					if err := calendar.Export(f, attending, reminder.DefaultLead); err != nil {
						return err
					}
					fmt.Printf("Wrote %d events to %s\n", len(attending), c.String("out"))
					return nil
				},
			},
			{
				Name:  "publish",
				Usage: "Push attending events to a CalDAV calendar.",
				Action: func(c *cli.Context) error {
					env, cleanup, err := newEnv(c.Context)
					if err != nil {
						return err
					}
					defer cleanup()
					uid, err := env.requireUser()
					if err != nil {
						return err
					}
					if err := env.events.LoadIfNeeded(c.Context); err != nil {
						return err
					}

					endpoint := os.Getenv("CALDAV_URL")
					if endpoint == "" {
						return fmt.Errorf("CALDAV_URL environment variable not set")
					}
					pub, err := calendar.NewPublisher(c.Context, env.logger, endpoint,
						os.Getenv("CALDAV_USERNAME"), os.Getenv("CALDAV_PASSWORD"),
						envOr("CALDAV_CALENDAR", "gathr"))
					if err != nil {
						return err
					}

					attending := calendar.Attending(env.events.Events(), uid)
					return pub.Publish(c.Context, attending, reminder.DefaultLead)
				},
			},
		},
	}
}

func remindCommand() *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Schedule reminders for attending events and wait.",
		Action: func(c *cli.Context) error {
			env, cleanup, err := newEnv(c.Context)
			if err != nil {
				return err
			}
			defer cleanup()
			uid, err := env.requireUser()
			if err != nil {
				return err
			}
			if err := env.events.LoadIfNeeded(c.Context); err != nil {
				return err
			}

			profile := env.profile
			if err := profile.Fetch(c.Context, uid); err != nil {
				return err
			}
			if u := profile.User(); u != nil && !u.NotificationsEnabled {
				return fmt.Errorf("notifications are disabled for this profile")
			}

			for _, ev := range calendar.Attending(env.events.Events(), uid) {
				env.reminder.Schedule(ev)
			}
			env.logger.Info("Reminders scheduled, waiting.", "pending", env.reminder.Pending())

			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			<-ch
			env.reminder.Stop()
			return nil
		},
	}
}

// fieldsFromFlags overlays the provided flags on base, geocoding the
// location when it changed. An unresolvable address is not fatal; the
// event just carries no coordinates.
func fieldsFromFlags(c *cli.Context, env *appEnv, base models.EventFields) (models.EventFields, error) {
	f := base
	if c.IsSet("title") {
		f.Title = c.String("title")
	}
	if c.IsSet("description") {
		f.Description = c.String("description")
	}
	if c.IsSet("category") {
		cat, err := models.ParseCategory(c.String("category"))
		if err != nil {
			return f, err
		}
		f.Category = cat
	}
	if c.IsSet("date") {
		d, err := parseDate(c.String("date"))
		if err != nil {
			return f, err
		}
		f.Date = d
	}
	if c.IsSet("location") && c.String("location") != base.Location {
		f.Location = c.String("location")
		lat, lon, err := env.geocoder.ResolveCoordinates(c.Context, f.Location)
		switch {
		case err == geocode.ErrNotFound:
			env.logger.Warn("Address not found, saving event without coordinates.", "location", f.Location)
			f.Latitude, f.Longitude = 0, 0
		case err != nil:
			return f, err
		default:
			f.Latitude, f.Longitude = lat, lon
		}
	}
	if f.Title == "" {
		return f, fmt.Errorf("title required")
	}
	return f, nil
}

func readImageFlag(c *cli.Context) ([]byte, error) {
	path := c.String("image")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func findEvent(events []models.Event, id string) (models.Event, error) {
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.Event{}, fmt.Errorf("no event with id %s", id)
}

func printEvent(ev models.Event, uid string) {
	marker := " "
	switch {
	case uid != "" && ev.UserID == uid:
		marker = "*" // yours
	case uid != "" && ev.HasAttendee(uid):
		marker = "+" // attending
	}
	fmt.Printf("%s %s  %-8s %-30s %s (%d attending)\n",
		marker, ev.Date.Format("2006-01-02 15:04"), ev.Category, ev.Title, ev.Location, len(ev.AttendeeIDs))
	fmt.Printf("    id: %s\n", ev.ID)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse date %q (want RFC3339 or '2006-01-02 15:04')", s)
	}
	return t, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
