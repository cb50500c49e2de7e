// Package remote is the client for the content backend. Every failure it
// returns is a *model.Error whose Kind drives the retry policy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/lexipath/lexisync/internal/model"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "lexisync/1"
	// maxErrorBody caps how much of an error body is kept in the message.
	maxErrorBody = 4 << 10
)

// TokenSource yields the bearer token for the current owner. An empty token
// with a nil error means nobody is signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// AllowAnonymous sends requests without Authorization when no token is
	// available instead of failing with KindNotAuthenticated.
	AllowAnonymous bool
	UserAgent      string
	// Proxy is an http, https or socks5 URL used by the default client.
	Proxy string
	// HTTPClient replaces the default HTTP/2-enabled client.
	HTTPClient *http.Client
}

// Client talks JSON over HTTP to the content backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    TokenSource
	anonymous bool
	userAgent string
}

// New builds a Client. tokens may be nil only when AllowAnonymous is set.
func New(cfg Config, tokens TokenSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base url: %w", err)
	}
	if tokens == nil && !cfg.AllowAnonymous {
		return nil, errors.New("remote: a token source is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		if hc, err = newHTTPClient(cfg.Timeout, cfg.Proxy); err != nil {
			return nil, err
		}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{base: base, http: hc, tokens: tokens, anonymous: cfg.AllowAnonymous, userAgent: ua}, nil
}

func newHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if err := applyProxy(tr, proxyURL); err != nil {
		return nil, err
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("remote: cannot enable http2: %w", err)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// do performs one request and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any, auth bool) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return model.E(model.KindClientError, op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return model.E(model.KindClientError, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if err := c.authorize(ctx, op, req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.E(model.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := model.E(classifyStatus(resp.StatusCode), op, readErrorBody(resp.Body))
		e.Status = resp.StatusCode
		return e
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.E(model.KindNetwork, op, err)
		}
		e := model.E(model.KindServerError, op, fmt.Errorf("decode response: %w", err))
		e.Status = resp.StatusCode
		return e
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, op string, req *http.Request) error {
	var token string
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil && !c.anonymous {
			return model.E(model.KindNotAuthenticated, op, err)
		}
		token = t
	}
	if token == "" {
		if c.anonymous {
			return nil
		}
		return model.NotAuthenticated(op)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func classifyStatus(code int) model.Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return model.KindUnauthorized
	case code == http.StatusNotFound:
		return model.KindNotFound
	case code >= 500:
		return model.KindServerError
	default:
		return model.KindClientError
	}
}

func readErrorBody(r io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
		return errors.New(eb.Error)
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return errors.New(s)
	}
	return nil
}

type dailyContentRequest struct {
	Date string `json:"date"`
}

// FetchToday asks the backend for the owner's content of date, generating it
// if needed.
func (c *Client) FetchToday(ctx context.Context, date model.Date) (*model.ContentRecord, error) {
	var rec model.ContentRecord
	// The backend binds the date as a timestamp.
	req := dailyContentRequest{Date: date.At(0, 0, time.UTC).Format(time.RFC3339)}
	if err := c.do(ctx, "remote.fetch_today", http.MethodPost, "v1/daily-content", nil, req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchHistory returns one page of the owner's content, newest first.
func (c *Client) FetchHistory(ctx context.Context, limit, offset int) (*model.HistoryPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var page model.HistoryPage
	if err := c.do(ctx, "remote.fetch_history", http.MethodGet, "v1/content/history", q, nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SubmitQuiz(ctx context.Context, sub model.QuizSubmission) (*model.QuizLog, error) {
	var log model.QuizLog
	if err := c.do(ctx, "remote.submit_quiz", http.MethodPost, "v1/quiz/submit", nil, sub, &log, true); err != nil {
		return nil, err
	}
	return &log, nil
}

func (c *Client) GenerateWeeklyPlan(ctx context.Context) (*model.WeeklyPlan, error) {
	var plan model.WeeklyPlan
	if err := c.do(ctx, "remote.generate_weekly_plan", http.MethodPost, "v1/weekly-plan/generate", nil, struct{}{}, &plan, true); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) UpsertProfile(ctx context.Context, upd model.ProfileUpdate) (*model.ProfileRecord, error) {
	var p model.ProfileRecord
	if err := c.do(ctx, "remote.upsert_profile", http.MethodPost, "v1/profile/upsert", nil, upd, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// TranslateRequest asks for a translation of Text between two languages.
type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
	BaseLang   string `json:"base_lang"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func (c *Client) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	var resp translateResponse
	if err := c.do(ctx, "remote.translate", http.MethodPost, "v1/translate", nil, req, &resp, true); err != nil {
		return "", err
	}
	return resp.Translation, nil
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health checks the backend. It never sends credentials.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := c.do(ctx, "remote.health", http.MethodGet, "healthz", nil, nil, &h, false); err != nil {
		return nil, err
	}
	return &h, nil
}
