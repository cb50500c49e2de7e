package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexipath/lexisync/internal/auth"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/daemon"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/scheduler"
	"github.com/lexipath/lexisync/pkg/credman/keyring"
	"github.com/lexipath/lexisync/pkg/logger"
)

type memTokens struct {
	mu     sync.Mutex
	secret string
}

func (m *memTokens) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secret == "" {
		return "", keyring.ErrNotFound
	}
	return m.secret, nil
}

func (m *memTokens) Set(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
	return nil
}

func (m *memTokens) Delete() error { return m.Set("") }

type okChecker struct{}

func (okChecker) Check(context.Context, scheduler.Constraints) error { return nil }

func idToken(t *testing.T, owner string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: owner, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// backend fakes the remote API endpoints used by the local commands.
type backend struct {
	mu       sync.Mutex
	profiles []model.ProfileUpdate
	quizzes  []model.QuizSubmission
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile/upsert", func(w http.ResponseWriter, r *http.Request) {
		var upd model.ProfileUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		b.mu.Lock()
		b.profiles = append(b.profiles, upd)
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(model.ProfileRecord{
			ID: "p1", GoalType: upd.GoalType, Level: upd.Level, TargetLang: upd.TargetLang, BaseLang: upd.BaseLang,
		})
	})
	mux.HandleFunc("/api/v1/quiz/submit", func(w http.ResponseWriter, r *http.Request) {
		var sub model.QuizSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		b.mu.Lock()
		b.quizzes = append(b.quizzes, sub)
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(model.QuizLog{ID: "q1", ContentID: sub.ContentID, CorrectAnswer: "gato", IsCorrect: sub.UserAnswer == "gato"})
	})
	mux.HandleFunc("/api/v1/weekly-plan/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.WeeklyPlan{
			ID:        "w1",
			WeekStart: model.MustParseDate("2024-01-08"),
			Items: []model.PlanItem{
				{Date: model.MustParseDate("2024-01-08"), ContentIDs: []string{"c1", "c2"}},
				{Date: model.MustParseDate("2024-01-14"), IsReviewDay: true},
			},
		})
	})
	mux.HandleFunc("/api/v1/translate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translation":"hola mundo"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func stubApp(t *testing.T, apiURL string, tokens keyring.Store) {
	t.Helper()
	dir := t.TempDir()
	oldCfg := loadConfigFile
	loadConfigFile = func(string) (*config.Config, error) {
		cfg := &config.Config{DataDir: dir, APIBaseURL: apiURL + "/api/"}
		cfg.SetDefaults()
		return cfg, nil
	}
	oldOpen := openApp
	openApp = func(ctx context.Context, cfg *config.Config) (*daemon.App, error) {
		return daemon.Open(ctx, cfg, &daemon.Dependencies{
			Logger:  logger.NewNopLogger(),
			Tokens:  tokens,
			Checker: okChecker{},
		})
	}
	t.Cleanup(func() {
		loadConfigFile = oldCfg
		openApp = oldOpen
	})
}

func TestTokenSetAndClear(t *testing.T) {
	_, srv := newBackend(t)
	tokens := &memTokens{}
	stubApp(t, srv.URL, tokens)
	out := captureOut(t)

	run(t, "token", "set", idToken(t, "owner-7"))
	if !strings.Contains(out.String(), "Signed in as owner-7.") {
		t.Fatalf("output = %q", out.String())
	}
	if tokens.secret == "" {
		t.Fatal("token not stored")
	}

	out.Reset()
	run(t, "token", "set", "not-a-jwt")
	if !strings.Contains(out.String(), "token[sign_in]") {
		t.Fatalf("output = %q", out.String())
	}

	run(t, "token", "clear")
	if tokens.secret != "" {
		t.Fatal("token not cleared")
	}
}

func TestLocalCommandsNeedOwner(t *testing.T) {
	_, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{})
	out := captureOut(t)

	run(t, "profile", "show")
	if !strings.Contains(out.String(), "profile[show]") || !strings.Contains(out.String(), "not_authenticated") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestProfileSetThenShow(t *testing.T) {
	b, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "profile", "show")
	if !strings.Contains(out.String(), "No cached profile") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	run(t, "profile", "set", "--goal", "language", "--level", "beginner", "--target", "es", "--base", "en")
	if !strings.Contains(out.String(), "Profile saved (language, beginner).") {
		t.Fatalf("output = %q", out.String())
	}
	if len(b.profiles) != 1 || b.profiles[0].TargetLang == nil || *b.profiles[0].TargetLang != "es" || b.profiles[0].IndustrySector != nil {
		t.Fatalf("backend got %+v", b.profiles)
	}

	out.Reset()
	run(t, "profile", "show")
	for _, want := range []string{"Goal:     language", "Target:   es", "Industry: -"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestProfileSetValidatesFlags(t *testing.T) {
	b, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "profile", "set", "--goal", "fun", "--level", "beginner")
	if len(b.profiles) != 0 {
		t.Fatal("invalid profile reached the backend")
	}
	if !strings.Contains(out.String(), errInvalidProfile.Error()) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestQuiz(t *testing.T) {
	b, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "quiz", "--content", "c1", "--type", "fill_blank", "perro")
	if !strings.Contains(out.String(), "The answer was: gato") {
		t.Fatalf("output = %q", out.String())
	}
	out.Reset()
	run(t, "quiz", "--content", "c1", "gato")
	if !strings.Contains(out.String(), "Correct!") {
		t.Fatalf("output = %q", out.String())
	}
	if len(b.quizzes) != 2 || b.quizzes[0].QuizType != model.QuizFillBlank || b.quizzes[1].QuizType != model.QuizMCQ {
		t.Fatalf("backend got %+v", b.quizzes)
	}
}

func TestPlanGenerateThenCached(t *testing.T) {
	_, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "plan")
	if !strings.Contains(out.String(), "No cached plan") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	run(t, "plan", "--generate")
	for _, want := range []string{"Week of 2024-01-08", "2024-01-08  new     2 item(s)", "2024-01-14  review  0 item(s)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	run(t, "plan")
	if !strings.Contains(out.String(), "Week of 2024-01-08") {
		t.Fatalf("cached plan not shown: %q", out.String())
	}
}

func TestTranslate(t *testing.T) {
	_, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "translate", "--to", "es", "hello", "world")
	if strings.TrimSpace(out.String()) != "hola mundo" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestPurge(t *testing.T) {
	_, srv := newBackend(t)
	stubApp(t, srv.URL, &memTokens{secret: idToken(t, "owner-1")})
	out := captureOut(t)

	run(t, "plan", "--generate")
	out.Reset()
	run(t, "purge")
	if !strings.Contains(out.String(), "Removed cached data of owner-1.") {
		t.Fatalf("output = %q", out.String())
	}
	out.Reset()
	run(t, "plan")
	if !strings.Contains(out.String(), "No cached plan") {
		t.Fatalf("plan survived the purge: %q", out.String())
	}
}
