package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gathr/internal/models"
)

func TestExport(t *testing.T) {
	events := []models.Event{
		{
			ID:       "e1",
			Title:    "Vinyl Night",
			Date:     time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC),
			Location: "Record Bar",
			Category: models.CategoryMusic,
		},
	}

	var buf bytes.Buffer
	if err := Export(&buf, events, 30*time.Minute); err != nil {
		t.Fatalf("export: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:e1",
		"SUMMARY:Vinyl Night",
		"LOCATION:Record Bar",
		"BEGIN:VALARM",
		"TRIGGER;VALUE=DURATION:-PT30M",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exported calendar missing %q:\n%s", want, out)
		}
	}
}

func TestExportWithoutAlarm(t *testing.T) {
	events := []models.Event{{ID: "e1", Title: "X", Date: time.Now()}}

	var buf bytes.Buffer
	if err := Export(&buf, events, 0); err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(buf.String(), "VALARM") {
		t.Error("no alarm expected with zero lead")
	}
}

func TestAttending(t *testing.T) {
	events := []models.Event{
		{ID: "e1", AttendeeIDs: []string{"u1", "u2"}},
		{ID: "e2", AttendeeIDs: []string{"u2"}},
		{ID: "e3"},
	}

	got := Attending(events, "u1")
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("expected [e1], got %v", got)
	}
	if Attending(events, "nobody") != nil {
		t.Error("expected nil for a user attending nothing")
	}
}
