package storefront

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"warmdelights/internal/backend"
	"warmdelights/internal/cart"
	"warmdelights/internal/catalog"
	"warmdelights/internal/middleware"
	"warmdelights/internal/whatsapp"
)

// RegisterRoutes mounts the visitor API. Callers provide the session and
// CSRF middleware.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/session", s.handleSession)
	r.Post("/visit", s.handleVisit)
	r.Get("/menu", s.handleMenu)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleCart)
		r.Post("/items", s.handleAddItem)
		r.Patch("/items/{id}", s.handleUpdateItem)
		r.Delete("/items/{id}", s.handleRemoveItem)
		r.Post("/checkout", s.handleCheckout)
	})

	r.Route("/gallery", func(r chi.Router) {
		r.Get("/", s.handleGallery)
		r.Post("/refresh", s.handleRefreshGallery)
		r.Post("/{id}/viewed", s.handleImageViewed)
		r.Post("/{id}/failed", s.handleImageFailed)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Post("/open", s.handleChatOpen)
		r.Post("/quick/{kind}", s.handleQuickReply)
		r.Post("/category/{category}", s.handleChatCategory)
	})

	r.Post("/contact", s.handleContact)
	r.Post("/custom-order", s.handleCustomOrder)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sid := middleware.GetSessionID(r.Context())
	c := s.controller(r)
	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"csrfToken": s.opts.CSRF.Issue(sid),
		"cartCount": c.Cart().Count,
	})
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page     string `json:"page"`
		Referrer string `json:"referrer"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Referrer == "" {
		req.Referrer = r.Referer()
	}
	if req.Referrer == "" {
		req.Referrer = "direct"
	}
	s.controller(r).Visit(r.Context(), req.Page, req.Referrer)
	middleware.WriteAPIStatus(w, r, http.StatusAccepted, nil)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	cat := catalog.Category(strings.ToLower(r.URL.Query().Get("category")))
	if cat != "" && cat != catalog.CategoryAll && !cat.Valid() {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_category", "Unknown menu category", string(cat))
		return
	}
	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"items": s.controller(r).Menu(cat),
	})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.controller(r).Cart())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   int `json:"itemId"`
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}
	upd, err := s.controller(r).AddItem(r.Context(), req.ItemID, req.Quantity)
	if errors.Is(err, ErrUnknownItem) {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "item_not_found", "Menu item not found", strconv.Itoa(req.ItemID))
		return
	}
	writeCartUpdate(w, r, upd)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeCartUpdate(w, r, s.controller(r).UpdateQuantity(r.Context(), id, req.Delta))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	upd := s.controller(r).RemoveItem(r.Context(), id)
	if !upd.Changed {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "item_not_in_cart", upd.Notice.Message, strconv.Itoa(id))
		return
	}
	middleware.WriteAPISuccess(w, r, upd)
}

// writeCartUpdate reports rejected changes as 422, still carrying the notice
// and cart so the client can show them.
func writeCartUpdate(w http.ResponseWriter, r *http.Request, upd CartUpdate) {
	if !upd.Changed {
		middleware.WriteAPIStatus(w, r, http.StatusUnprocessableEntity, upd)
		return
	}
	middleware.WriteAPISuccess(w, r, upd)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	order, err := s.controller(r).Checkout(r.Context())
	if errors.Is(err, cart.ErrEmptyCart) {
		middleware.WriteAPIError(w, r, http.StatusUnprocessableEntity, "cart_empty", "Your cart is empty!", "")
		return
	}
	middleware.WriteAPISuccess(w, r, order)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.controller(r).Gallery(r.Context()))
}

func (s *Server) handleRefreshGallery(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.controller(r).RefreshGallery(r.Context()))
}

func (s *Server) handleImageViewed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controller(r).ImageViewed(r.Context(), id); err != nil {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "image_not_found", "Image not found", id)
		return
	}
	middleware.WriteAPIStatus(w, r, http.StatusAccepted, nil)
}

func (s *Server) handleImageFailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	next, err := s.controller(r).ImageFailed(id)
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "image_not_found", "Image not found", id)
		return
	}
	middleware.WriteAPISuccess(w, r, next)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "empty_message", "Message is required", "")
		return
	}
	middleware.WriteAPISuccess(w, r, s.controller(r).Chat(r.Context(), req.Message))
}

func (s *Server) handleChatOpen(w http.ResponseWriter, r *http.Request) {
	s.controller(r).OpenChat(r.Context())
	middleware.WriteAPIStatus(w, r, http.StatusAccepted, nil)
}

func (s *Server) handleQuickReply(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	resp, ok := s.controller(r).QuickReply(r.Context(), kind)
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "unknown_quick_reply", "Unknown quick reply", kind)
		return
	}
	middleware.WriteAPISuccess(w, r, resp)
}

func (s *Server) handleChatCategory(w http.ResponseWriter, r *http.Request) {
	cat := catalog.Category(chi.URLParam(r, "category"))
	resp, ok := s.controller(r).ChatCategory(r.Context(), cat)
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "invalid_category", "Unknown menu category", string(cat))
		return
	}
	middleware.WriteAPISuccess(w, r, resp)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg backend.ContactMessage
	if !decode(w, r, &msg) {
		return
	}
	if strings.TrimSpace(msg.Name) == "" || strings.TrimSpace(msg.Message) == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "missing_fields", "Name and message are required", "")
		return
	}
	middleware.WriteAPISuccess(w, r, s.controller(r).Contact(r.Context(), msg))
}

func (s *Server) handleCustomOrder(w http.ResponseWriter, r *http.Request) {
	var o whatsapp.CustomOrder
	if !decode(w, r, &o) {
		return
	}
	receipt, err := s.controller(r).CustomOrder(r.Context(), o)
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_custom_order", "Please fill in all required fields.", err.Error())
		return
	}
	middleware.WriteAPISuccess(w, r, receipt)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.ParseJSONRequest(r, v); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return false
	}
	return true
}

func itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_item_id", "Invalid item ID", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}
