package gallery

import (
	"strings"
	"sync"
)

// PlaceholderURL is the last resort for any image.
const PlaceholderURL = "https://via.placeholder.com/300x200/f4c2c2/d67b8a?text=Warm+Delights"

// Candidates returns the URLs to try for img, in order, without duplicates.
// Inline data URLs go straight to the placeholder after themselves.
func Candidates(img Image, baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")
	var urls []string
	if img.URL != "" {
		urls = append(urls, img.URL)
	}
	if img.Filename != "" && !img.IsDataURL() {
		urls = append(urls,
			base+"/uploads/"+img.Filename,
			base+"/api/uploads/"+img.Filename,
			base+"/images/"+img.Filename,
		)
	}
	urls = append(urls, PlaceholderURL)

	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Resolver tracks how far down its candidate chain each image has advanced.
// Images advance independently.
type Resolver struct {
	mu      sync.Mutex
	baseURL string
	pos     map[string]int
}

func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: baseURL, pos: make(map[string]int)}
}

// Current is the URL img should be displayed with now.
func (r *Resolver) Current(img Image) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Candidates(img, r.baseURL)
	return c[r.clamp(img.Key(), len(c))]
}

// Failed records a load error for the current URL and returns the next one.
// It reports false once the placeholder has been reached.
func (r *Resolver) Failed(img Image) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Candidates(img, r.baseURL)
	i := r.clamp(img.Key(), len(c))
	if i == len(c)-1 {
		return c[i], false
	}
	r.pos[img.Key()] = i + 1
	return c[i+1], true
}

// Apply rewrites each image URL to its current candidate.
func (r *Resolver) Apply(images []Image) []Image {
	out := make([]Image, len(images))
	for i, img := range images {
		img.URL = r.Current(img)
		out[i] = img
	}
	return out
}

// Reset forgets all progress, e.g. after the gallery is refreshed.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.pos = make(map[string]int)
	r.mu.Unlock()
}

func (r *Resolver) clamp(key string, n int) int {
	i := r.pos[key]
	if i >= n {
		i = n - 1
	}
	return i
}
