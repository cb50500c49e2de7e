package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{name: "plain date", in: "2024-03-10", want: Date{2024, time.March, 10}},
		{name: "rfc3339 utc", in: "2024-03-10T00:00:00Z", want: Date{2024, time.March, 10}},
		{name: "rfc3339 keeps own offset", in: "2024-03-10T23:30:00-05:00", want: Date{2024, time.March, 10}},
		{name: "surrounding space", in: " 2024-12-31 ", want: Date{2024, time.December, 31}},
		{name: "garbage", in: "tomorrow", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("leap day: got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("month rollover: got %s", got)
	}
	if got := d.AddDays(-59).String(); got != "2023-12-31" {
		t.Errorf("year rollback: got %s", got)
	}
	// 2024-03-10 is a Sunday.
	if got := MustParseDate("2024-03-10").ISOWeekday(); got != 7 {
		t.Errorf("expected ISO weekday 7 for Sunday, got %d", got)
	}
	if got := MustParseDate("2024-03-11").ISOWeekday(); got != 1 {
		t.Errorf("expected ISO weekday 1 for Monday, got %d", got)
	}
	if !MustParseDate("2024-03-09").Before(MustParseDate("2024-03-10")) {
		t.Error("expected 03-09 before 03-10")
	}
}

func TestDateJSON(t *testing.T) {
	rec := ContentRecord{ID: "c1", OwnerID: "u1", Date: MustParseDate("2024-05-01"), Word: "gato"}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if got["date"] != "2024-05-01" {
		t.Errorf("expected date 2024-05-01, got %v", got["date"])
	}
	if _, ok := got["CachedAt"]; ok {
		t.Error("CachedAt must not be serialized")
	}

	var back ContentRecord
	if err := json.Unmarshal([]byte(`{"id":"c2","date":"2024-05-02T00:00:00Z"}`), &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.Date.String() != "2024-05-02" {
		t.Errorf("expected 2024-05-02, got %s", back.Date)
	}
}

func TestKindOf(t *testing.T) {
	base := E(KindServerError, "remote.fetch_today", errors.New("boom"))
	wrapped := fmt.Errorf("resolve today: %w", base)
	exhausted := &ExhaustedError{Attempts: 3, Last: wrapped}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("x"), want: KindUnknown},
		{name: "direct", err: base, want: KindServerError},
		{name: "wrapped", err: wrapped, want: KindServerError},
		{name: "exhausted reports last cause", err: exhausted, want: KindServerError},
		{name: "not authenticated", err: NotAuthenticated("sync.today"), want: KindNotAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %s, want %s", got, tt.want)
			}
		})
	}

	if !IsExhausted(fmt.Errorf("job: %w", exhausted)) {
		t.Error("expected wrapped ExhaustedError to be detected")
	}
	if got := AttemptsOf(exhausted); got != 3 {
		t.Errorf("AttemptsOf exhausted = %d, want 3", got)
	}
	if got := AttemptsOf(base); got != 1 {
		t.Errorf("AttemptsOf terminal = %d, want 1", got)
	}
	if !errors.Is(NotAuthenticated("x"), ErrNoOwner) {
		t.Error("NotAuthenticated should wrap ErrNoOwner")
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindNetwork:          true,
		KindServerError:      true,
		KindUnauthorized:     false,
		KindClientError:      false,
		KindNotFound:         false,
		KindCacheUnavailable: false,
		KindNotAuthenticated: false,
		KindUnknown:          false,
	}
	for k, want := range retryable {
		if got := k.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", k, got, want)
		}
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("server_error")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if k != KindServerError {
		t.Errorf("got %s", k)
	}
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
