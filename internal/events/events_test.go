package events

import (
	"testing"
	"time"
)

func TestSuggestionIDDeterministic(t *testing.T) {
	a := SuggestionID(SourceSlack, "C123:1700000000.000100")
	b := SuggestionID(SourceSlack, "C123:1700000000.000100")
	if a != b {
		t.Fatalf("expected stable ID, got %s and %s", a, b)
	}

	c := SuggestionID(SourceEmail, "C123:1700000000.000100")
	if a == c {
		t.Fatalf("IDs must differ across sources, both were %s", a)
	}
}

func TestSenderName(t *testing.T) {
	cases := []struct {
		from string
		want string
	}{
		{`Dana Smith <dana@example.com>`, "Dana Smith"},
		{`"Dana Smith" <dana@example.com>`, "Dana Smith"},
		{`dana@example.com`, "dana"},
		{`<dana@example.com>`, "dana"},
		{`Dana`, "Dana"},
		{`  `, ""},
	}
	for _, tc := range cases {
		if got := SenderName(tc.from); got != tc.want {
			t.Errorf("SenderName(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	if got := TruncateText("short", 10); got != "short" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	if got := TruncateText("abcdefghij", 10); got != "abcdefghij" {
		t.Fatalf("expected exact-length text unchanged, got %q", got)
	}
	if got := TruncateText("abcdefghijk", 10); got != "abcdefghij..." {
		t.Fatalf("expected truncated text, got %q", got)
	}
	if got := TruncateText("héllo wörld", 5); got != "héllo..." {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestSlackMessageTime(t *testing.T) {
	msg := SlackMessage{TS: "1700000000.123456"}
	got := msg.Time()
	want := time.Unix(1700000000, 0).Add(123456 * time.Microsecond)
	if got.Sub(want) > time.Millisecond || want.Sub(got) > time.Millisecond {
		t.Fatalf("Time() = %v, want about %v", got, want)
	}

	if !(SlackMessage{}).Time().IsZero() {
		t.Fatal("empty TS must yield zero time")
	}
	if !(SlackMessage{TS: "garbage"}).Time().IsZero() {
		t.Fatal("malformed TS must yield zero time")
	}
}
