// Package api is a client for the import backend's REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// APIError is a failed backend call: a non-2xx status or an envelope with
// "success": false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status of an APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client wraps an HTTP client pointed at the backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for the backend at baseURL. The client keeps the
// backend's session cookie between calls.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL %q must be http or https", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// BaseURL returns the backend URL the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URL resolves an API path and query against the backend URL. path is in
// escaped form; segments built from user data go through url.PathEscape.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	raw := strings.TrimRight(u.EscapedPath(), "/") + path
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/logout", nil, nil, "", nil)
}

// upload describes a multipart file part plus extra form fields.
type upload struct {
	field    string
	filename string
	body     io.Reader
	fields   map[string]string
}

func (u upload) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(u.field, u.filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, u.body); err != nil {
		return nil, "", fmt.Errorf("copy %s: %w", u.filename, err)
	}
	for k, v := range u.fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}
	return c.send(ctx, method, path, nil, bytes.NewReader(data), "application/json", out)
}

func (c *Client) postMultipart(ctx context.Context, path string, up upload, out any) error {
	body, contentType, err := up.encode()
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, nil, body, contentType, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var env envelope
	if err := decodeJSON(data, &env); err == nil && env.failed() {
		return &APIError{Status: resp.StatusCode, Message: env.message()}
	}
	if out == nil {
		return nil
	}
	if err := decodeJSON(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do performs the request and turns non-2xx responses into *APIError. The
// caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	slog.Debug("backend call", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return resp, nil
}

// envelope is the {success, message|errorMessage} wrapper most question
// endpoints use.
type envelope struct {
	Success      *bool  `json:"success"`
	Message      string `json:"message"`
	ErrorMessage string `json:"errorMessage"`
	Error        string `json:"error"`
}

func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

func (e envelope) message() string {
	switch {
	case e.ErrorMessage != "":
		return e.ErrorMessage
	case e.Message != "":
		return e.Message
	}
	return e.Error
}

func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if msg := env.message(); msg != "" {
			return msg
		}
	}
	return string(body)
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
