// Package storefront serves the public site: menu, cart with WhatsApp
// checkout, gallery, chat assistant and contact forms. Each visitor session
// gets its own Controller.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/backend"
	"warmdelights/internal/cart"
	"warmdelights/internal/catalog"
	"warmdelights/internal/chatbot"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
	"warmdelights/internal/storage"
	"warmdelights/internal/whatsapp"
)

var (
	ErrUnknownItem  = errors.New("unknown menu item")
	ErrUnknownImage = errors.New("unknown gallery image")
)

const contactTimeout = 10 * time.Second

// ContactSender forwards contact form submissions.
type ContactSender interface {
	SubmitContact(ctx context.Context, msg backend.ContactMessage) error
}

type CartView struct {
	Lines []cart.Line `json:"items"`
	Total int64       `json:"total"`
	Count int         `json:"count"`
}

type CartUpdate struct {
	cart.Result
	Cart CartView `json:"cart"`
}

type GalleryView struct {
	gallery.Result
	// Message is the banner shown with local-only or empty results.
	Message string `json:"message,omitempty"`
}

type FailedImage struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	More bool   `json:"more"`
}

type ContactReceipt struct {
	Message   string `json:"message"`
	Forwarded bool   `json:"forwarded"`
}

type CustomOrderReceipt struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Controller owns one visitor session's state. Cart operations are
// serialized; gallery loads run outside the lock.
type Controller struct {
	id       string
	mu       sync.Mutex
	cart     *cart.Cart
	lastSeen time.Time

	menu            *catalog.Catalog
	link            whatsapp.Link
	clearOnCheckout bool
	bot             *chatbot.Bot
	contacts        ContactSender

	volatile storage.Store
	loader   *gallery.Loader
	resolver *gallery.Resolver
	viewer   *gallery.Viewer
	tracker  *analytics.Tracker
	events   *analytics.Log

	galleryMu  sync.Mutex
	lastImages []gallery.Image
	chatOpened bool

	now func() time.Time
}

func newController(id string, d Deps, volatile storage.Store) *Controller {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	events := analytics.NewLog(volatile, storage.KeyEvents, analytics.SessionEventCap)
	tracker := analytics.NewTracker(
		events,
		d.Events,
		d.Pusher,
		analytics.WithClock(now),
	)
	cache := gallery.NewPublicCache(volatile, d.GalleryTTL, now)
	return &Controller{
		id:              id,
		cart:            cart.New(),
		lastSeen:        now(),
		menu:            d.Menu,
		link:            d.Link,
		clearOnCheckout: d.ClearCartOnCheckout,
		bot:             chatbot.New(d.Menu, d.Link),
		contacts:        d.Contacts,
		volatile:        volatile,
		loader:          gallery.NewLoader(cache, d.Remote, d.Mirror, tracker),
		resolver:        gallery.NewResolver(d.BaseURL),
		viewer:          gallery.NewViewer(d.Views, tracker),
		tracker:         tracker,
		events:          events,
		now:             now,
	}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastSeen = c.now()
	c.mu.Unlock()
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Visit records a page view.
func (c *Controller) Visit(ctx context.Context, page, referrer string) {
	c.tracker.Record(ctx, analytics.EventPageVisit, map[string]interface{}{
		"page":     page,
		"referrer": referrer,
	})
}

func (c *Controller) Menu(cat catalog.Category) []catalog.MenuItem {
	return c.menu.ByCategory(cat)
}

func (c *Controller) Cart() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartView()
}

func (c *Controller) cartView() CartView {
	lines := c.cart.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return CartView{Lines: lines, Total: c.cart.Total(), Count: c.cart.Count()}
}

func (c *Controller) AddItem(ctx context.Context, itemID, qty int) (CartUpdate, error) {
	item, ok := c.menu.Lookup(itemID)
	if !ok {
		return CartUpdate{}, fmt.Errorf("%w: %d", ErrUnknownItem, itemID)
	}

	c.mu.Lock()
	res := c.cart.AddItem(item, qty)
	view := c.cartView()
	c.mu.Unlock()

	if res.Changed {
		c.tracker.Record(ctx, analytics.EventCartAdd, map[string]interface{}{
			"itemId":   item.ID,
			"itemName": item.Name,
			"price":    item.Price,
			"category": string(item.Category),
			"quantity": qty,
		})
	}
	return CartUpdate{Result: res, Cart: view}, nil
}

// UpdateQuantity applies a relative change; a result of zero removes the line.
func (c *Controller) UpdateQuantity(ctx context.Context, itemID, delta int) CartUpdate {
	c.mu.Lock()
	var before cart.Line
	for _, l := range c.cart.Lines() {
		if l.Item.ID == itemID {
			before = l
		}
	}
	res := c.cart.UpdateQuantity(itemID, delta)
	view := c.cartView()
	c.mu.Unlock()

	if res.Removed {
		c.recordRemove(ctx, before)
	}
	return CartUpdate{Result: res, Cart: view}
}

func (c *Controller) RemoveItem(ctx context.Context, itemID int) CartUpdate {
	c.mu.Lock()
	line, ok := c.cart.RemoveItem(itemID)
	view := c.cartView()
	c.mu.Unlock()

	if !ok {
		return CartUpdate{Result: cart.Result{Notice: cart.Notice{Level: cart.LevelError, Message: "Item is not in the cart"}}, Cart: view}
	}
	c.recordRemove(ctx, line)
	return CartUpdate{
		Result: cart.Result{Changed: true, Removed: true, Notice: cart.Notice{Level: cart.LevelSuccess, Message: line.Item.Name + " removed from cart"}},
		Cart:   view,
	}
}

func (c *Controller) recordRemove(ctx context.Context, l cart.Line) {
	c.tracker.Record(ctx, analytics.EventCartRemove, map[string]interface{}{
		"itemName": l.Item.Name,
		"quantity": l.Quantity,
	})
}

// Checkout renders the WhatsApp handoff for the current cart.
func (c *Controller) Checkout(ctx context.Context) (cart.Order, error) {
	c.mu.Lock()
	order, err := c.cart.Checkout(c.link)
	if err == nil && c.clearOnCheckout {
		c.cart.Clear()
	}
	c.mu.Unlock()
	if err != nil {
		return cart.Order{}, err
	}

	items := make([]map[string]interface{}, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, map[string]interface{}{"name": l.Name, "quantity": l.Quantity, "price": l.UnitPrice})
	}
	c.tracker.Record(ctx, analytics.EventWhatsAppOrder, map[string]interface{}{
		"items": items,
		"total": order.Total,
	})
	return order, nil
}

// Gallery loads the gallery with each image URL resolved through its
// fallback chain.
func (c *Controller) Gallery(ctx context.Context) GalleryView {
	return c.galleryView(c.loader.Load(ctx))
}

func (c *Controller) RefreshGallery(ctx context.Context) GalleryView {
	c.resolver.Reset()
	return c.galleryView(c.loader.Refresh(ctx))
}

func (c *Controller) InvalidateGallery(ctx context.Context) {
	c.loader.Invalidate(ctx)
}

func (c *Controller) galleryView(res gallery.Result) GalleryView {
	c.galleryMu.Lock()
	c.lastImages = res.Images
	c.galleryMu.Unlock()

	res.Images = c.resolver.Apply(res.Images)
	v := GalleryView{Result: res}
	switch {
	case res.Empty:
		v.Message = "No gallery images yet. Check back soon or follow us on Instagram!"
	case res.LocalOnly:
		v.Message = "Showing locally saved images. Some photos may be missing."
	}
	return v
}

func (c *Controller) image(id string) (gallery.Image, error) {
	c.galleryMu.Lock()
	defer c.galleryMu.Unlock()
	for _, img := range c.lastImages {
		if img.Key() == id {
			return img, nil
		}
	}
	return gallery.Image{}, fmt.Errorf("%w: %s", ErrUnknownImage, id)
}

// ImageViewed reports a successful render.
func (c *Controller) ImageViewed(ctx context.Context, id string) error {
	img, err := c.image(id)
	if err != nil {
		return err
	}
	c.viewer.Viewed(ctx, img)
	return nil
}

// ImageFailed advances the image to its next candidate URL.
func (c *Controller) ImageFailed(id string) (FailedImage, error) {
	img, err := c.image(id)
	if err != nil {
		return FailedImage{}, err
	}
	next, more := c.resolver.Failed(img)
	return FailedImage{ID: id, URL: next, More: more}, nil
}

func (c *Controller) OpenChat(ctx context.Context) {
	c.mu.Lock()
	first := !c.chatOpened
	c.chatOpened = true
	c.mu.Unlock()
	if first {
		c.tracker.Record(ctx, analytics.EventChatbotOpened, nil)
	}
}

func (c *Controller) Chat(ctx context.Context, message string) chatbot.Response {
	c.tracker.Record(ctx, analytics.EventChatMessage, map[string]interface{}{
		"message": analytics.Truncate(message, 100),
	})
	resp := c.bot.Reply(message)
	if resp.Category != "" {
		c.recordCategory(ctx, resp.Category)
	}
	return resp
}

func (c *Controller) QuickReply(ctx context.Context, kind string) (chatbot.Response, bool) {
	resp, ok := c.bot.QuickReply(kind)
	if ok {
		c.tracker.Record(ctx, "chatbot_quick_response", map[string]interface{}{"type": kind})
	}
	return resp, ok
}

func (c *Controller) ChatCategory(ctx context.Context, cat catalog.Category) (chatbot.Response, bool) {
	if !cat.Valid() {
		return chatbot.Response{}, false
	}
	c.recordCategory(ctx, cat)
	return c.bot.Category(cat), true
}

func (c *Controller) recordCategory(ctx context.Context, cat catalog.Category) {
	c.tracker.Record(ctx, analytics.EventChatbotCategory, map[string]interface{}{"category": string(cat)})
}

// Contact forwards a contact form. The visitor is told it was sent even when
// the backend is unreachable.
func (c *Controller) Contact(ctx context.Context, msg backend.ContactMessage) ContactReceipt {
	c.tracker.Record(ctx, analytics.EventContactSubmit, map[string]interface{}{
		"name": strings.TrimSpace(msg.Name),
	})

	receipt := ContactReceipt{Message: "Message sent successfully! We'll get back to you soon."}
	if c.contacts == nil {
		return receipt
	}
	cctx, cancel := context.WithTimeout(ctx, contactTimeout)
	defer cancel()
	if err := c.contacts.SubmitContact(cctx, msg); err != nil {
		logger.LogWarn("Contact form not forwarded, reporting success anyway: %v", err)
		return receipt
	}
	receipt.Forwarded = true
	return receipt
}

// CustomOrder validates the form and renders its WhatsApp handoff.
func (c *Controller) CustomOrder(ctx context.Context, o whatsapp.CustomOrder) (CustomOrderReceipt, error) {
	if err := o.Validate(); err != nil {
		return CustomOrderReceipt{}, err
	}
	msg := o.Message()
	c.tracker.Record(ctx, analytics.EventCustomOrder, map[string]interface{}{
		"customerName": o.CustomerName,
		"size":         o.Size,
		"flavour":      o.Flavour,
	})
	return CustomOrderReceipt{Message: msg, URL: c.link.URL(msg)}, nil
}

// SessionEvents returns the events recorded by this session only.
func (c *Controller) SessionEvents(ctx context.Context) []analytics.Event {
	return c.events.All(ctx)
}

// close stops backend pushes, waits for those in flight and drops the
// session's volatile data. A request still holding the controller may keep
// recording locally.
func (c *Controller) close(ctx context.Context) {
	c.viewer.Close()
	c.tracker.Close()
	if err := c.volatile.Clear(ctx); err != nil {
		logger.LogWarn("Failed to clear session %s storage: %v", c.id, err)
	}
}
