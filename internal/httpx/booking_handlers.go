package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/booking"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := parseDay(q.Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	a, err := h.Bookings.CheckAvailability(ctx, chi.URLParam(r, "id"), day, q.Get("slot"), q.Get("now") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.NewBooking
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.CustomerID = actor(r, req.CustomerID)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.CreateBooking(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Bookings.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) updateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req booking.StatusChange
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.BookingID = chi.URLParam(r, "id")
	req.ActorID = actor(r, req.ActorID)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.UpdateStatus(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) bookingHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hist, err := h.Bookings.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var req booking.NewReview
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.CustomerID = actor(r, req.CustomerID)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rv, err := h.Bookings.CreateReview(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Bookings.ListServiceReviews(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
