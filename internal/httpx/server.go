package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/booking"
	"github.com/ariefcatur/marketplace-core/internal/catalog"
	"github.com/ariefcatur/marketplace-core/internal/inventory"
	"github.com/ariefcatur/marketplace-core/internal/orders"
	"github.com/ariefcatur/marketplace-core/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Handlers adapts the core engines to HTTP. Nil engines leave their routes
// unregistered.
type Handlers struct {
	Catalog   *catalog.Engine
	Bookings  *booking.Engine
	Orders    *orders.Engine
	Inventory *inventory.Service

	Sessions    *session.CookieStore
	SessionName string
}

func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if h.Sessions != nil {
			r.Use(h.sessionMiddleware)
			r.Delete("/session", h.logout)
		}
		if h.Catalog != nil {
			r.Get("/products", h.listProducts)
			r.Get("/services", h.listServices)
			r.Get("/shops", h.listShops)
		}
		if h.Inventory != nil {
			r.Post("/products/stock", h.bulkAdjust)
			r.Patch("/products/{id}/stock", h.adjustStock)
			r.Delete("/shops/{shopID}/products/{id}", h.deleteProduct)
		}
		if h.Orders != nil {
			r.Post("/orders", h.createOrder)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}/status", h.updateOrderStatus)
			r.Get("/orders/{id}/timeline", h.orderTimeline)
			r.Get("/shops/{id}/dashboard", h.dashboard)
		}
		if h.Bookings != nil {
			r.Get("/services/{id}/availability", h.availability)
			r.Get("/services/{id}/reviews", h.listReviews)
			r.Post("/bookings", h.createBooking)
			r.Get("/bookings/{id}", h.getBooking)
			r.Patch("/bookings/{id}/status", h.updateBookingStatus)
			r.Get("/bookings/{id}/history", h.bookingHistory)
			r.Post("/reviews", h.createReview)
		}
	})
	return r
}

type ctxKey struct{}

// sessionMiddleware loads the caller's session, if any, and extends its
// lifetime on every request.
func (h *Handlers) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.Sessions.Get(r, h.SessionName)
		if err != nil {
			// tampered or stale cookie: continue anonymously
			zap.L().Debug("session load", zap.Error(err))
		}
		if sess != nil && !sess.IsNew {
			if err := h.Sessions.Touch(r, sess); err != nil {
				zap.L().Warn("session touch", zap.String("sid", sess.ID), zap.Error(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *sessions.Session {
	s, _ := r.Context().Value(ctxKey{}).(*sessions.Session)
	return s
}

// actor returns the session's user id, or fallback when the request carries
// no authenticated session.
func actor(r *http.Request, fallback string) string {
	if s := sessionFrom(r); s != nil {
		if id, ok := s.Values["user_id"].(string); ok && id != "" {
			return id
		}
	}
	return fallback
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil || sess.IsNew {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess.Options.MaxAge = -1
	if err := h.Sessions.Save(r, w, sess); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
