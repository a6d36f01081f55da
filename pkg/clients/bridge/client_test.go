package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCalendarEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/providers/calendar/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]CalendarEvent{
			{ID: "cal-1", Title: "Standup", Start: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), Location: "Room 12"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	events, err := client.CalendarEvents(context.Background())
	if err != nil {
		t.Fatalf("calendar events: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Standup" || events[0].Location != "Room 12" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/providers/email/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]EmailMessage{
			{ID: "em-1", Subject: "Action required", From: "a@b.c", IsStarred: true, IsUnread: true},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	emails, err := client.Emails(context.Background())
	if err != nil {
		t.Fatalf("emails: %v", err)
	}
	if len(emails) != 1 || !emails[0].IsStarred {
		t.Fatalf("unexpected emails: %+v", emails)
	}
}

func TestNonOKStatusIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := client.Emails(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}
