package httpserver

import (
	"fmt"
	"net/http"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/internal/money"
	"ecomOrderManagement/models"
)

func (h *handlers) listWilayas(w http.ResponseWriter, r *http.Request) {
	wilayas, err := h.d.Shipping.ListWilayas(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if wilayas == nil {
		wilayas = []models.Wilaya{}
	}
	respondJSON(w, http.StatusOK, struct {
		Wilayas []models.Wilaya `json:"wilayas"`
	}{Wilayas: wilayas})
}

func (h *handlers) listCommunes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	communes, err := h.d.Shipping.ListCommunes(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if communes == nil {
		communes = []models.Commune{}
	}
	respondJSON(w, http.StatusOK, struct {
		Communes []models.Commune `json:"communes"`
	}{Communes: communes})
}

type wilayaRequest struct {
	Name        string `json:"name"`
	HomePrice   string `json:"home_price"`
	BureauPrice string `json:"bureau_price"`
}

func (h *handlers) createWilaya(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	var req wilayaRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == "" {
		respondError(w, r, invalidInputf("wilaya name is required"))
		return
	}
	home, err := money.ParseAmount(req.HomePrice)
	if err != nil {
		respondError(w, r, invalidInputf("home_price: %v", err))
		return
	}
	bureau, err := money.ParseAmount(req.BureauPrice)
	if err != nil {
		respondError(w, r, invalidInputf("bureau_price: %v", err))
		return
	}
	created, err := h.d.Shipping.CreateWilaya(r.Context(), &models.Wilaya{
		Name:        req.Name,
		HomePrice:   home,
		BureauPrice: bureau,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

type wilayaPatch struct {
	Name        *string `json:"name"`
	HomePrice   *string `json:"home_price"`
	BureauPrice *string `json:"bureau_price"`
}

func (h *handlers) updateWilaya(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	wl, err := h.d.Shipping.GetWilayaByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if wl == nil {
		respondError(w, r, fmt.Errorf("%w: wilaya %d", lifecycle.ErrNotFound, id))
		return
	}
	var req wilayaPatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			respondError(w, r, invalidInputf("wilaya name is required"))
			return
		}
		wl.Name = *req.Name
	}
	if req.HomePrice != nil {
		home, err := money.ParseAmount(*req.HomePrice)
		if err != nil {
			respondError(w, r, invalidInputf("home_price: %v", err))
			return
		}
		wl.HomePrice = home
	}
	if req.BureauPrice != nil {
		bureau, err := money.ParseAmount(*req.BureauPrice)
		if err != nil {
			respondError(w, r, invalidInputf("bureau_price: %v", err))
			return
		}
		wl.BureauPrice = bureau
	}
	if err := h.d.Shipping.UpdateWilaya(r.Context(), wl); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

func (h *handlers) deleteWilaya(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.d.Shipping.DeleteWilaya(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type communeRequest struct {
	Name string `json:"name"`
}

func (h *handlers) createCommune(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	wilayaID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	wl, err := h.d.Shipping.GetWilayaByID(r.Context(), wilayaID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if wl == nil {
		respondError(w, r, fmt.Errorf("%w: wilaya %d", lifecycle.ErrNotFound, wilayaID))
		return
	}
	var req communeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == "" {
		respondError(w, r, invalidInputf("commune name is required"))
		return
	}
	created, err := h.d.Shipping.CreateCommune(r.Context(), wilayaID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *handlers) deleteCommune(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.d.Shipping.DeleteCommune(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
