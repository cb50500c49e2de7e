package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lexipath/lexisync/internal/model"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token(context.Context) (string, error) { return s.token, s.err }

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource, anonymous bool) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, AllowAnonymous: anonymous, HTTPClient: srv.Client()}, tokens)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchTodaySendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotReqID, gotDate string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/daily-content" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotDate = body["date"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","user_id":"backend-uuid","date":"2024-03-10T00:00:00Z","word":"gato","meaning":"cat","examples_target":["el gato"],"created_at":"2024-03-10T06:00:00Z"}`))
	}, staticToken{token: "tok"}, false)

	rec, err := c.FetchToday(context.Background(), model.MustParseDate("2024-03-10"))
	if err != nil {
		t.Fatalf("FetchToday: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("expected X-Request-ID header")
	}
	if gotDate != "2024-03-10T00:00:00Z" {
		t.Errorf("request date = %q", gotDate)
	}
	if rec.ID != "c1" || rec.Word != "gato" || rec.Date.String() != "2024-03-10" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   model.Kind
	}{
		{http.StatusUnauthorized, `{"error":"invalid token"}`, model.KindUnauthorized},
		{http.StatusForbidden, ``, model.KindUnauthorized},
		{http.StatusNotFound, ``, model.KindNotFound},
		{http.StatusBadRequest, `{"error":"Profile not found"}`, model.KindClientError},
		{http.StatusTooManyRequests, ``, model.KindClientError},
		{http.StatusInternalServerError, `{"error":"Failed to get daily content"}`, model.KindServerError},
		{http.StatusBadGateway, `bad gateway`, model.KindServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, staticToken{token: "tok"}, false)
			_, err := c.FetchToday(context.Background(), model.MustParseDate("2024-03-10"))
			if got := model.KindOf(err); got != tt.want {
				t.Fatalf("kind = %s, want %s (err %v)", got, tt.want, err)
			}
			var e *model.Error
			if errors.As(err, &e) && e.Status != tt.status {
				t.Errorf("status = %d, want %d", e.Status, tt.status)
			}
			if strings.HasPrefix(tt.body, `{"error":"`) {
				var eb errorBody
				json.Unmarshal([]byte(tt.body), &eb)
				if !strings.Contains(err.Error(), eb.Error) {
					t.Errorf("error body %q not carried: %v", eb.Error, err)
				}
			}
		})
	}
}

func TestUndecodableSuccessIsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}, staticToken{token: "tok"}, false)
	_, err := c.FetchToday(context.Background(), model.MustParseDate("2024-03-10"))
	if model.KindOf(err) != model.KindServerError {
		t.Fatalf("expected server_error, got %v", err)
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second}, staticToken{token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.FetchToday(context.Background(), model.MustParseDate("2024-03-10"))
	if model.KindOf(err) != model.KindNetwork {
		t.Fatalf("expected network, got %v", err)
	}
}

func TestTimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	hc := srv.Client()
	hc.Timeout = 50 * time.Millisecond
	c, err := New(Config{BaseURL: srv.URL, HTTPClient: hc}, staticToken{token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.FetchHistory(context.Background(), 20, 0)
	if model.KindOf(err) != model.KindNetwork {
		t.Fatalf("expected network, got %v", err)
	}
}

func TestMissingTokenFailsFast(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, staticToken{}, false)
	_, err := c.FetchToday(context.Background(), model.MustParseDate("2024-03-10"))
	if model.KindOf(err) != model.KindNotAuthenticated {
		t.Fatalf("expected not_authenticated, got %v", err)
	}
	if called {
		t.Error("request must not be sent without a credential")
	}
}

func TestAllowAnonymousProceedsWithoutAuth(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"content":[],"limit":20,"offset":0}`))
	}, staticToken{err: errors.New("keyring locked")}, true)
	if _, err := c.FetchHistory(context.Background(), 20, 0); err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestFetchHistoryQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/content/history" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "5" || r.URL.Query().Get("offset") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"content":[{"id":"a","date":"2024-03-01"}],"limit":5,"offset":10}`))
	}, staticToken{token: "tok"}, false)
	page, err := c.FetchHistory(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(page.Content) != 1 || page.Limit != 5 || page.Offset != 10 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHealthNeverAuthenticates(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"healthy","timestamp":"2024-03-10T00:00:00Z"}`))
	}, staticToken{token: "tok"}, false)
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("health must not send credentials, got %q", gotAuth)
	}
	if h.Status != "healthy" {
		t.Errorf("status = %q", h.Status)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}, staticToken{}); err == nil {
		t.Error("expected error for empty base url")
	}
	if _, err := New(Config{BaseURL: "http://x"}, nil); err == nil {
		t.Error("expected error for missing token source")
	}
	if _, err := New(Config{BaseURL: "http://x", AllowAnonymous: true}, nil); err != nil {
		t.Errorf("anonymous client without tokens: %v", err)
	}
}
