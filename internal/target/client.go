package target

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Creator is the credentialed management surface.
type Creator interface {
	CreateAccount(ctx context.Context, p AccountPayload) (string, error)
	CreateSurvey(ctx context.Context, p SurveyPayload) (string, error)
}

// Submitter is the public client surface.
type Submitter interface {
	SubmitResponse(ctx context.Context, surveyID string, p ResponsePayload) (string, error)
}

const (
	maxBodyBytes   = 1 << 20
	maxErrorBody   = 2048
	envPlaceholder = "{environmentId}"
)

var errNoID = errors.New("response carries no id")

type Options struct {
	BaseURL            string
	APIKey             string
	EnvironmentID      string
	AccountsPath       string
	SurveysPath        string
	ResponsesPath      string
	HealthPath         string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client implements Creator and Submitter over HTTP.
type Client struct {
	opts Options
	http *http.Client
}

func New(opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout, Transport: transport},
	}
}

func (c *Client) CreateAccount(ctx context.Context, p AccountPayload) (string, error) {
	return c.post(ctx, "create account", c.opts.AccountsPath, true, p)
}

func (c *Client) CreateSurvey(ctx context.Context, p SurveyPayload) (string, error) {
	if p.EnvironmentID == "" {
		p.EnvironmentID = c.opts.EnvironmentID
	}
	return c.post(ctx, "create survey", c.opts.SurveysPath, true, p)
}

func (c *Client) SubmitResponse(ctx context.Context, surveyID string, p ResponsePayload) (string, error) {
	p.SurveyID = surveyID
	return c.post(ctx, "submit response", c.opts.ResponsesPath, false, p)
}

// Health performs a single GET against the health path. Any 2xx or 3xx
// status counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.opts.HealthPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError("health check", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 400 {
		return &Error{Op: "health check", Status: resp.StatusCode, Transient: true}
	}
	return nil
}

func (c *Client) url(path string) string {
	path = strings.ReplaceAll(path, envPlaceholder, c.opts.EnvironmentID)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.opts.BaseURL + path
}

func (c *Client) post(ctx context.Context, op, path string, authenticated bool, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Op: op, Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &Error{Op: op, Status: resp.StatusCode, Transient: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Op:        op,
			Status:    resp.StatusCode,
			Body:      clip(string(data), maxErrorBody),
			Transient: transientStatus(resp.StatusCode),
		}
	}

	id := extractID(data)
	if id == "" {
		return "", &Error{Op: op, Status: resp.StatusCode, Body: clip(string(data), maxErrorBody), Err: errNoID}
	}
	return id, nil
}

// extractID accepts both enveloped ({"data":{"id":...}}) and bare ({"id":...}) replies.
func extractID(body []byte) string {
	for _, path := range []string{"data.id", "id"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
