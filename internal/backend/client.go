// Package backend is the HTTP client for the Warm Delights backend
// collaborator: gallery storage, analytics and contact submissions.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/catalog"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
)

var (
	// ErrUnavailable covers transport errors, non-2xx responses and
	// malformed bodies. Callers fall back to local data on it.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrUnauthorized is a 401 on an authenticated endpoint.
	ErrUnauthorized = errors.New("backend rejected credentials")
)

const (
	maxErrorBody    = 512
	maxResponseBody = 8 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
	}
}

// NewWithHTTPClient is used by tests pointing at an httptest server.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, r.path, err)
	}
	if len(body) > maxResponseBody {
		return nil, fmt.Errorf("%w: %s %s response exceeds %d bytes", ErrUnavailable, r.method, r.path, maxResponseBody)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s %s", ErrUnauthorized, r.method, r.path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: %s %s returned HTTP %d: %s", ErrUnavailable, r.method, r.path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) doJSON(ctx context.Context, r request, out interface{}) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", ErrUnavailable, r.path, err)
	}
	return nil
}

func jsonBody(v interface{}) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

// ListMenu fetches the menu if the backend serves one.
func (c *Client) ListMenu(ctx context.Context) ([]catalog.MenuItem, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/api/menu"})
	if err != nil {
		return nil, err
	}
	var items []catalog.MenuItem
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Items []catalog.MenuItem `json:"items"`
		}
		if werr := json.Unmarshal(body, &wrapped); werr != nil {
			return nil, fmt.Errorf("%w: malformed menu: %v", ErrUnavailable, err)
		}
		items = wrapped.Items
	}
	return items, nil
}

// ListImages returns the gallery normalized to gallery.Image.
func (c *Client) ListImages(ctx context.Context) ([]gallery.Image, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/api/images"})
	if err != nil {
		return nil, err
	}
	images, err := gallery.NormalizeList(body, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return images, nil
}

// UploadImage posts one file as multipart field "image".
func (c *Client) UploadImage(ctx context.Context, token, filename, contentType string, r io.Reader) (gallery.Image, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return gallery.Image{}, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return gallery.Image{}, fmt.Errorf("buffering upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return gallery.Image{}, fmt.Errorf("closing multipart writer: %w", err)
	}

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/admin/gallery/upload",
		token:       token,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return gallery.Image{}, err
	}

	var wrapped struct {
		Image json.RawMessage `json:"image"`
	}
	raw := json.RawMessage(body)
	if json.Unmarshal(body, &wrapped) == nil && len(wrapped.Image) > 0 {
		raw = wrapped.Image
	}
	img, ok := gallery.Normalize(raw, c.baseURL)
	if !ok || img.Filename == "unknown" {
		img, _ = gallery.Normalize(json.RawMessage(fmt.Sprintf("%q", filename)), c.baseURL)
	}
	img.Source = gallery.SourceGlobalStorage
	logger.LogInfo("Uploaded %s to backend as %s", filename, img.Key())
	return img, nil
}

func (c *Client) DeleteImage(ctx context.Context, token, id string) error {
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/admin/gallery/" + url.PathEscape(id),
		token:  token,
	})
	return err
}

// Analytics fetches the backend aggregate counters.
func (c *Client) Analytics(ctx context.Context, token string) (analytics.Stats, error) {
	var resp struct {
		Stats *analytics.Stats `json:"stats"`
	}
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/admin/analytics", token: token}, &resp); err != nil {
		return analytics.Stats{}, err
	}
	if resp.Stats == nil {
		return analytics.Stats{}, fmt.Errorf("%w: analytics response has no stats", ErrUnavailable)
	}
	return *resp.Stats, nil
}

// Track pushes one analytics event.
func (c *Client) Track(ctx context.Context, token, eventType string, data map[string]interface{}) error {
	body, err := jsonBody(map[string]interface{}{"eventType": eventType, "data": data})
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", eventType, err)
	}
	return c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/api/analytics/track",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, nil)
}

func (c *Client) RecordView(ctx context.Context, filename string) error {
	return c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/api/images/" + url.PathEscape(filename) + "/view",
		body:        strings.NewReader("{}"),
		contentType: "application/json",
	}, nil)
}

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SubmitContact forwards a contact form. A 2xx without success:true still
// counts as a failure.
func (c *Client) SubmitContact(ctx context.Context, msg ContactMessage) error {
	body, err := jsonBody(msg)
	if err != nil {
		return fmt.Errorf("encoding contact message: %w", err)
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/api/contact",
		body:        body,
		contentType: "application/json",
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: contact submission not accepted", ErrUnavailable)
	}
	return nil
}

// ValidateToken probes an authenticated endpoint. Only a 401 means the token
// is bad; an unreachable backend leaves it to the local session.
func (c *Client) ValidateToken(ctx context.Context, token string) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/analytics", token: token})
	return err
}

type Health struct {
	Status string `json:"status"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/health"}, &h); err != nil {
		return Health{}, err
	}
	if h.Status == "" {
		h.Status = "ok"
	}
	return h, nil
}
