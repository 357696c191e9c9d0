// Package whatsapp builds the deep links orders are handed off through.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"
)

// Link targets one WhatsApp number (international format, digits only).
type Link struct {
	Number string
}

// URL returns the wa.me deep link with message pre-filled.
func (l Link) URL(message string) string {
	u := "https://wa.me/" + strings.TrimPrefix(strings.TrimSpace(l.Number), "+")
	if message == "" {
		return u
	}
	// wa.me expects %20 rather than '+' for spaces.
	return u + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

// CustomOrder is the bespoke-cake request form.
type CustomOrder struct {
	CustomerName string `json:"customerName"`
	Phone        string `json:"customerPhone"`
	Size         string `json:"treatSize"`
	Flavour      string `json:"treatFlavour"`
	DesignNotes  string `json:"designNotes"`
	DeliveryDate string `json:"deliveryDate,omitempty"`
}

// Validate checks the fields the bakery needs to quote.
func (o CustomOrder) Validate() error {
	var missing []string
	if strings.TrimSpace(o.CustomerName) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(o.Phone) == "" {
		missing = append(missing, "customerPhone")
	}
	if strings.TrimSpace(o.Size) == "" {
		missing = append(missing, "treatSize")
	}
	if strings.TrimSpace(o.Flavour) == "" {
		missing = append(missing, "treatFlavour")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Message renders the custom order request text.
func (o CustomOrder) Message() string {
	var b strings.Builder
	b.WriteString("Hi! I'd like to place a custom order from Warm Delights:\n\n")
	b.WriteString("*Customer Details:*\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\n\n", o.CustomerName, o.Phone)
	b.WriteString("*Custom Order Details:*\n")
	fmt.Fprintf(&b, "Size: %s\nFlavour: %s\nDesign Notes: %s\n", o.Size, o.Flavour, o.DesignNotes)
	if o.DeliveryDate != "" {
		fmt.Fprintf(&b, "Required Date: %s\n", o.DeliveryDate)
	}
	b.WriteString("\nPlease confirm availability and pricing.")
	return b.String()
}
