// Package chatbot is the storefront's keyword-driven assistant.
package chatbot

import (
	"fmt"
	"strings"

	"warmdelights/internal/catalog"
	"warmdelights/internal/whatsapp"
)

const (
	email     = "dayitagoyal10@gmail.com"
	instagram = "@warmdelights"
	hours     = "We're open Mon-Sat: 9AM-7PM and Sun: 10AM-5PM. We're located at #60B, Fio Homes 2, Dhakoli, Zirakpur, 160104. 🕒"
)

// Action is a button offered under a reply.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Response is one bot turn. Category is set when the reply lists a menu
// category; ShowCategories asks the client to render the category picker.
type Response struct {
	Text           string             `json:"text"`
	Category       catalog.Category   `json:"category,omitempty"`
	Items          []catalog.MenuItem `json:"items,omitempty"`
	ShowCategories bool               `json:"showCategories,omitempty"`
	Actions        []Action           `json:"actions,omitempty"`
}

type Bot struct {
	menu *catalog.Catalog
	link whatsapp.Link
}

func New(menu *catalog.Catalog, link whatsapp.Link) *Bot {
	return &Bot{menu: menu, link: link}
}

func (b *Bot) phone() string {
	return "+" + strings.TrimPrefix(b.link.Number, "+")
}

// Reply answers a free-text message. Rules are checked in a fixed order and
// the first match wins.
func (b *Bot) Reply(message string) Response {
	m := strings.ToLower(strings.TrimSpace(message))

	switch {
	case strings.Contains(m, "menu") || strings.Contains(m, "what do you have"):
		return Response{Text: "Here are our menu categories:", ShowCategories: true}
	case strings.Contains(m, "price") || strings.Contains(m, "cost") || strings.Contains(m, "much"):
		return Response{Text: b.priceSummary()}
	case strings.Contains(m, "cake") && !strings.Contains(m, "cupcake"):
		return b.Category(catalog.CategoryCakes)
	case strings.Contains(m, "cookie"):
		return b.Category(catalog.CategoryCookies)
	case strings.Contains(m, "cupcake") || strings.Contains(m, "muffin"):
		return b.Category(catalog.CategoryCupcakes)
	case strings.Contains(m, "delivery"):
		return Response{Text: "We deliver across the Tricity! 🚚 Charges vary by location. Same-day delivery available. For best experience, order 2-3 days in advance."}
	case strings.Contains(m, "contact") || strings.Contains(m, "phone") || strings.Contains(m, "whatsapp"):
		return Response{Text: fmt.Sprintf("You can reach us at:\n📱 Mobile: %s\n💬 WhatsApp: %s\n📧 Email: %s\n📸 Instagram: %s",
			b.phone(), b.phone(), email, instagram)}
	case strings.Contains(m, "custom"):
		return Response{Text: fmt.Sprintf("Yes! We love custom orders! 🎨 Check our Custom Orders section above or contact us on WhatsApp %s to discuss your requirements!", b.phone())}
	case strings.Contains(m, "eggless"):
		return Response{Text: "All our products are 100% eggless! 🥚❌ Perfect for vegetarians and those with egg allergies. No compromise on taste or texture!"}
	}
	return Response{Text: fmt.Sprintf("Thanks for your message! For specific questions, please contact us on WhatsApp %s or check our menu above. How else can I help you today? 😊", b.phone())}
}

// QuickReply answers one of the canned buttons: menu, hours, order, delivery.
func (b *Bot) QuickReply(kind string) (Response, bool) {
	switch kind {
	case "menu":
		return Response{Text: "Here's our menu categories! What would you like to explore? 🍰", ShowCategories: true}, true
	case "hours":
		return Response{Text: hours}, true
	case "order":
		return Response{
			Text: fmt.Sprintf("To place an order, you can use our shopping cart on the website or contact us directly via WhatsApp at %s. What would you like to order? 🛒", b.phone()),
			Actions: []Action{{
				Label: "💬 Order via WhatsApp",
				URL:   b.link.URL("Hi! I'd like to place an order from Warm Delights."),
			}},
		}, true
	case "delivery":
		return Response{Text: "We offer delivery across the Tricity! Delivery charges vary by location. Same-day delivery is available under certain conditions. We recommend ordering 2-3 days in advance for the best experience. 🚚"}, true
	}
	return Response{}, false
}

// Category lists one menu category with its follow-up actions.
func (b *Bot) Category(cat catalog.Category) Response {
	return Response{
		Text:     fmt.Sprintf("Our %s:", cat.DisplayName()),
		Category: cat,
		Items:    b.menu.ByCategory(cat),
		Actions: []Action{
			{Label: "🛒 Add to Cart", Kind: "add_to_cart"},
			{Label: "↩️ Back to Categories", Kind: "categories"},
			{Label: "💬 Order Now", URL: b.link.URL(fmt.Sprintf("Hi! I'd like to order some %s from Warm Delights.", strings.ToLower(cat.DisplayName())))},
		},
	}
}

func (b *Bot) priceSummary() string {
	low, high := b.menu.PriceRange()
	var parts []string
	for _, cat := range []catalog.Category{catalog.CategoryCookies, catalog.CategoryCupcakes, catalog.CategoryCakes} {
		items := b.menu.ByCategory(cat)
		if len(items) == 0 {
			continue
		}
		cheapest := items[0]
		for _, it := range items[1:] {
			if it.Price < cheapest.Price {
				cheapest = it
			}
		}
		label := strings.ToUpper(string(cat[:1])) + string(cat[1:])
		switch {
		case cheapest.MinOrder > 1:
			parts = append(parts, fmt.Sprintf("%s at %s (min %d)", label, cheapest.DisplayPrice(), cheapest.MinOrder))
		case cheapest.PriceUnit != "":
			parts = append(parts, fmt.Sprintf("%s start at %s", label, cheapest.DisplayPrice()))
		default:
			parts = append(parts, fmt.Sprintf("%s from %s", label, cheapest.DisplayPrice()))
		}
	}
	summary := fmt.Sprintf("Our prices range from ₹%d-₹%d!", low, high)
	if len(parts) > 0 {
		summary += " " + joinList(parts) + "."
	}
	return summary + " What specific item are you interested in? 💰"
}

func joinList(parts []string) string {
	if len(parts) < 2 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
