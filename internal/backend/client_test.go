package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.URL, srv.Client())
}

func TestListImagesNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/images", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"images":["a.jpg",{"_id":"2","filename":"b.jpg","url":"/uploads/b.jpg"}]}`)
	})

	images, err := c.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, c.BaseURL()+"/uploads/a.jpg", images[0].URL)
	assert.Equal(t, "2", images[1].ID)
	assert.Equal(t, c.BaseURL()+"/uploads/b.jpg", images[1].URL)
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/images":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/api/admin/analytics":
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/contact":
			io.WriteString(w, `not json`)
		}
	})

	_, err := c.ListImages(ctx)
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = c.Analytics(ctx, "tok")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrUnavailable))

	err = c.SubmitContact(ctx, ContactMessage{Name: "A"})
	assert.True(t, errors.Is(err, ErrUnavailable))

	dead := NewWithHTTPClient("http://127.0.0.1:1", http.DefaultClient)
	_, err = dead.Health(ctx)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOversizedResponseIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"images":["`)
		io.WriteString(w, strings.Repeat("a", maxResponseBody))
		io.WriteString(w, `"]}`)
	})

	_, err := c.ListImages(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "exceeds")
}

func TestUploadImageSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/admin/gallery/upload", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cake.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))

		io.WriteString(w, `{"success":true,"image":{"id":"abc","filename":"1700-cake.png","url":"/uploads/1700-cake.png"}}`)
	})

	img, err := c.UploadImage(context.Background(), "tok", "cake.png", "image/png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "abc", img.ID)
	assert.Equal(t, c.BaseURL()+"/uploads/1700-cake.png", img.URL)
}

func TestUploadImageWithoutImageInResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true}`)
	})
	img, err := c.UploadImage(context.Background(), "tok", "cake.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "cake.png", img.Filename)
}

func TestTrackAndStats(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/analytics/track":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			io.WriteString(w, `{"success":true}`)
		case "/api/admin/analytics":
			io.WriteString(w, `{"stats":{"totalVisitors":12,"whatsappOrders":3}}`)
		case "/api/images/cake one.jpg/view":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
	})

	ctx := context.Background()
	require.NoError(t, c.Track(ctx, "", "cart_add", map[string]interface{}{"itemId": 1}))
	assert.Equal(t, "cart_add", got["eventType"])

	stats, err := c.Analytics(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalVisitors)
	assert.Equal(t, 3, stats.WhatsAppOrders)

	require.NoError(t, c.RecordView(ctx, "cake one.jpg"))
}

func TestDeleteAndValidate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodDelete {
			assert.Equal(t, "/api/admin/gallery/abc", r.URL.Path)
		}
		io.WriteString(w, `{"stats":{}}`)
	})

	ctx := context.Background()
	assert.NoError(t, c.DeleteImage(ctx, "good", "abc"))
	assert.NoError(t, c.ValidateToken(ctx, "good"))
	assert.ErrorIs(t, c.ValidateToken(ctx, "bad"), ErrUnauthorized)
}
