package testing

import (
	"bytes"
	"fmt"
	"time"

	"warmdelights/internal/backend"
	"warmdelights/internal/whatsapp"
)

// TestImage is one file for an admin upload.
type TestImage struct {
	Name string
	Data []byte
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

// GeneratePNG returns a file that sniffs as image/png.
func GeneratePNG(name string, size int) TestImage {
	if size < len(pngMagic) {
		size = len(pngMagic)
	}
	data := append(append([]byte(nil), pngMagic...), bytes.Repeat([]byte{0}, size-len(pngMagic))...)
	return TestImage{Name: name, Data: data}
}

func GenerateJPEG(name string) TestImage {
	return TestImage{Name: name, Data: append(append([]byte(nil), jpegMagic...), bytes.Repeat([]byte{1}, 64)...)}
}

// GenerateTextFile is rejected by upload validation.
func GenerateTextFile(name string) TestImage {
	return TestImage{Name: name, Data: []byte("definitely not an image")}
}

// GenerateCustomOrder returns a complete custom order form. Pass "missing-name"
// or "missing-phone" to blank a required field.
func GenerateCustomOrder(variations ...string) whatsapp.CustomOrder {
	o := whatsapp.CustomOrder{
		CustomerName: "Priya Sharma",
		Phone:        "9876501234",
		Size:         "1kg",
		Flavour:      "Chocolate Truffle",
		DesignNotes:  "Happy 30th Ananya, gold drip",
		DeliveryDate: time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
	}
	for _, v := range variations {
		switch v {
		case "missing-name":
			o.CustomerName = ""
		case "missing-phone":
			o.Phone = ""
		case "no-date":
			o.DeliveryDate = ""
		}
	}
	return o
}

// GenerateContactMessage returns a contact form submission numbered n.
func GenerateContactMessage(n int) backend.ContactMessage {
	return backend.ContactMessage{
		Name:    fmt.Sprintf("Customer %d", n),
		Email:   fmt.Sprintf("customer%d@example.com", n),
		Phone:   "9876500000",
		Message: "Do you deliver to Koramangala on Sundays?",
	}
}

// testCatalogYAML is a two-item menu for catalog file loading.
const testCatalogYAML = `items:
  - id: 1
    name: Eggless Truffle Cake
    category: cakes
    price: 650
    minOrder: 1
  - id: 2
    name: Oat Cookies
    category: cookies
    price: 150
    minOrder: 2
    priceUnit: /box
`
