package analytics

import (
	"sort"
	"time"
)

// Stats are the dashboard counters, either from the backend or recomputed
// locally.
type Stats struct {
	TotalVisitors      int `json:"totalVisitors"`
	TodayVisitors      int `json:"todayVisitors"`
	CartAdditions      int `json:"cartAdditions"`
	WhatsAppOrders     int `json:"whatsappOrders"`
	ChatInteractions   int `json:"chatInteractions"`
	ContactSubmissions int `json:"contactSubmissions"`
	ImageUploads       int `json:"imageUploads"`
	ImageViews         int `json:"imageViews"`
}

// ComputeLocal derives Stats from locally stored events. "Today" compares
// calendar days in loc.
func ComputeLocal(events []Event, imageUploads int, now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()

	s := Stats{ImageUploads: imageUploads}
	for _, ev := range events {
		switch ev.Type {
		case EventPageVisit:
			s.TotalVisitors++
			ey, em, ed := ev.Timestamp.In(loc).Date()
			if ey == y && em == m && ed == d {
				s.TodayVisitors++
			}
		case EventCartAdd:
			s.CartAdditions++
		case EventWhatsAppOrder:
			s.WhatsAppOrders++
		case EventChatMessage:
			s.ChatInteractions++
		case EventContactSubmit:
			s.ContactSubmissions++
		case EventImageView:
			s.ImageViews++
		}
	}
	return s
}

// Recent returns up to n events, newest first.
func Recent(events []Event, n int) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
