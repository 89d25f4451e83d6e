package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/sponsor"
	"buildInPublicAPI/services"
)

type SponsorHandler struct {
	sponsorService *services.SponsorService
}

func NewSponsorHandler(sponsorService *services.SponsorService) *SponsorHandler {
	return &SponsorHandler{
		sponsorService: sponsorService,
	}
}

// GET /api/v1/sponsor/prices
func (h *SponsorHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	prices, err := h.sponsorService.ListPrices(ctx)
	if err != nil {
		response.Error(w, err)
		return
	}
	if prices == nil {
		prices = []sponsor.Price{}
	}
	response.OK(w, prices)
}

// POST /api/v1/sponsor/checkout
func (h *SponsorHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req sponsor.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	checkout, err := h.sponsorService.CreateCheckout(ctx, userID, &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, checkout)
}

// GET /api/v1/sponsor/success?_ptxn= reports whether the order has been applied yet.
func (h *SponsorHandler) CheckoutResult(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	orderID := r.URL.Query().Get("_ptxn")
	if orderID == "" {
		orderID = r.URL.Query().Get("orderId")
	}

	sub, err := h.sponsorService.GetCheckoutResult(ctx, orderID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sub)
}

// GET /api/v1/profiles/{username}/sponsors
func (h *SponsorHandler) ListSponsors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sponsors, err := h.sponsorService.ListSponsors(ctx, mux.Vars(r)["username"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sponsors)
}

// GET /api/v1/me/sponsorships
func (h *SponsorHandler) MySponsorships(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	subs, err := h.sponsorService.ListSponsorships(ctx, userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, subs)
}
