package analytics

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventPageVisit        EventType = "page_visit"
	EventCartAdd          EventType = "cart_add"
	EventCartRemove       EventType = "cart_remove"
	EventWhatsAppOrder    EventType = "whatsapp_order"
	EventCustomOrder      EventType = "custom_order"
	EventChatMessage      EventType = "chat_message"
	EventChatbotOpened    EventType = "chatbot_opened"
	EventChatbotCategory  EventType = "chatbot_category_viewed"
	EventContactSubmit    EventType = "contact_submit"
	EventImageView        EventType = "image_view"
	EventGalleryLoaded    EventType = "gallery_loaded"
	EventGalleryRefreshed EventType = "gallery_refreshed"
)

// Event is one entry of an append-only log. Admin activities reuse the same
// shape with the action name as Type.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Describe renders an event for the admin visitor log.
func Describe(ev Event) string {
	switch ev.Type {
	case EventPageVisit:
		return "👥 New visitor"
	case EventCartAdd:
		return fmt.Sprintf("🛒 Added %s to cart", dataOr(ev, "itemName", "item"))
	case EventWhatsAppOrder:
		return fmt.Sprintf("💬 Placed WhatsApp order (₹%v)", dataOr(ev, "total", "0"))
	case EventChatMessage:
		return "💬 Used chatbot"
	case EventContactSubmit:
		return "📧 Sent contact form"
	case EventCustomOrder:
		return "🎨 Custom order request"
	case EventGalleryLoaded:
		return fmt.Sprintf("🖼️ Viewed gallery (%v images)", dataOr(ev, "imageCount", "0"))
	case EventImageView:
		return "👁️ Viewed image"
	}
	return "📊 Unknown activity"
}

var activityDescriptions = map[string]string{
	"dashboard_access":     "🚪 Accessed dashboard",
	"login":                "🔐 Logged in",
	"upload_started":       "📤 Started image upload",
	"upload_completed":     "✅ Completed image upload",
	"upload_failed":        "❌ Image upload failed",
	"image_deleted_global": "🗑️ Deleted image from global storage",
	"image_deleted_local":  "🗑️ Deleted image from local storage",
	"analytics_viewed":     "📊 Viewed analytics",
	"visitor_log_viewed":   "👥 Viewed visitor log",
	"admin_gallery_viewed": "🖼️ Viewed admin gallery",
	"gallery_refreshed":    "🔄 Refreshed gallery",
	"session_extended":     "⏰ Extended session",
	"logout":               "🚪 Logged out",
}

// DescribeActivity renders an admin action; unknown actions are shown as is.
func DescribeActivity(action string) string {
	if d, ok := activityDescriptions[action]; ok {
		return d
	}
	return action
}

func dataOr(ev Event, key string, def interface{}) interface{} {
	if v, ok := ev.Data[key]; ok && v != nil && v != "" {
		return v
	}
	return def
}
