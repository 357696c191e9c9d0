package gallery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source names where a gallery payload came from.
type Source string

const (
	SourceSessionCache  Source = "session-cache"
	SourceGlobalStorage Source = "global-storage"
	SourceLocalStorage  Source = "localStorage"
	SourceEmpty         Source = "empty"
)

// Image is the canonical gallery record. Every backend or mirror shape is
// mapped to it by Normalize before any other code sees it.
type Image struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadDate,omitempty"`
	Size       int64     `json:"size,omitempty"`
	Source     Source    `json:"source,omitempty"`
}

// Key identifies the image for deletion and view tracking.
func (i Image) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Filename
}

// IsDataURL reports whether the image is an inline upload kept locally.
func (i Image) IsDataURL() bool {
	return strings.HasPrefix(i.URL, "data:")
}

// Payload is one cached gallery load.
type Payload struct {
	Images     []Image   `json:"images"`
	CapturedAt time.Time `json:"timestamp"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Source     Source    `json:"source"`
}

// NormalizeList decodes a listing response: either a bare array or an object
// wrapping the array under "images" or "data".
func NormalizeList(raw []byte, baseURL string) ([]Image, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Images []json.RawMessage `json:"images"`
			Data   []json.RawMessage `json:"data"`
		}
		if werr := json.Unmarshal(raw, &wrapped); werr != nil {
			return nil, fmt.Errorf("malformed image listing: %w", err)
		}
		items = wrapped.Images
		if items == nil {
			items = wrapped.Data
		}
	}

	images := make([]Image, 0, len(items))
	for _, item := range items {
		if img, ok := Normalize(item, baseURL); ok {
			images = append(images, img)
		}
	}
	return images, nil
}

// Normalize maps one listing entry to an Image. Entries may be a bare
// filename string or an object using any of the field spellings the backend
// and older mirrors have produced.
func Normalize(raw json.RawMessage, baseURL string) (Image, bool) {
	base := strings.TrimRight(baseURL, "/")

	var filename string
	if err := json.Unmarshal(raw, &filename); err == nil {
		if filename == "" {
			return Image{}, false
		}
		return Image{
			ID:       filename,
			Filename: filename,
			Name:     filename,
			URL:      base + "/uploads/" + filename,
		}, true
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Image{}, false
	}

	img := Image{
		ID:       firstString(obj, "id", "_id"),
		Filename: firstString(obj, "filename", "name", "originalname"),
		Name:     firstString(obj, "name", "originalname", "filename"),
		Size:     int64Of(obj["size"]),
	}
	if img.Filename == "" {
		img.Filename = "unknown"
	}
	if img.Name == "" {
		img.Name = img.Filename
	}
	if img.ID == "" {
		img.ID = img.Filename
	}

	img.URL = firstString(obj, "data", "url", "path")
	switch {
	case img.URL == "":
		img.URL = base + "/uploads/" + img.Filename
	case strings.HasPrefix(img.URL, "data:"), strings.HasPrefix(img.URL, "http://"), strings.HasPrefix(img.URL, "https://"):
	default:
		if !strings.HasPrefix(img.URL, "/") {
			img.URL = "/" + img.URL
		}
		img.URL = base + img.URL
	}

	if ts := firstString(obj, "uploadDate", "uploadedAt", "createdAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			img.UploadedAt = t
		}
	}
	if src := firstString(obj, "source"); src != "" {
		img.Source = Source(src)
	}
	return img, true
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func int64Of(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
