package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/abenezer/gymcard-services/internal/cardsvc/service"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	cards *service.CardService
}

func NewHandler(cards *service.CardService) *Handler {
	return &Handler{cards: cards}
}

// flexID tolerates clients that send the id as a quoted string, which the
// reader panels do.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func writeStatus(w http.ResponseWriter, code int, status, message string) {
	writeJSON(w, code, map[string]any{"status": status, "message": message})
}

// writeServiceError maps service-layer failures onto the JSON envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeStatus(w, http.StatusNotFound, "error", "Gym card not found")
	case errors.Is(err, service.ErrDuplicateTag):
		writeStatus(w, http.StatusBadRequest, "error", err.Error())
	case errors.Is(err, service.ErrInvalidSort):
		writeStatus(w, http.StatusBadRequest, "error", "Invalid sort_by parameter")
	default:
		writeStatus(w, http.StatusInternalServerError, "error", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid JSON")
		return false
	}
	return true
}

// parseTimestamp accepts RFC3339 and the bare isoformat the panels send.
func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}

func (h *Handler) GetGymCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

type createRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	ExpirationDate string `json:"expiration_date"`
	RfidCardID     string `json:"rfid_card_id"`
	Priority       int    `json:"priority"`
}

func (req *createRequest) toCard(w http.ResponseWriter) (*models.GymCard, bool) {
	if req.Title == "" || req.Description == "" || req.ExpirationDate == "" {
		writeStatus(w, http.StatusBadRequest, "error", "Missing required fields")
		return nil, false
	}

	expiration, err := parseTimestamp(req.ExpirationDate)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid expiration_date")
		return nil, false
	}

	return &models.GymCard{
		Title:          req.Title,
		Description:    req.Description,
		RfidCardID:     req.RfidCardID,
		ExpirationDate: expiration,
		Priority:       req.Priority,
	}, true
}

func (h *Handler) CreateGymCard(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	card, ok := req.toCard(w)
	if !ok {
		return
	}

	card, err := h.cards.Create(r.Context(), card)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Gym card created successfully",
		"id":      card.ID,
		"card":    card,
	})
}

// CreateGymCardWithPage is the pairing-initiation endpoint: the card is
// created provisionally and the next reader scan binds its tag. The
// response carries the listening window so the UI can show a countdown.
func (h *Handler) CreateGymCardWithPage(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	card, ok := req.toCard(w)
	if !ok {
		return
	}

	card, timeout, err := h.cards.CreateWithPairing(r.Context(), card)
	if err != nil {
		writeStatus(w, http.StatusBadGateway, "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Gym card created, waiting for rfid scan",
		"card":    card,
		"timeout": int(timeout.Seconds()),
	})
}

func (h *Handler) DeleteGymCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID flexID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == 0 {
		writeStatus(w, http.StatusNotFound, "error", "Gym card not found")
		return
	}

	card, err := h.cards.Delete(r.Context(), int64(req.ID))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "Gym card deleted",
		"deleted_card": card,
	})
}

func (h *Handler) UpdateGymCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       flexID  `json:"id"`
		Status   *string `json:"status"`
		Priority *int    `json:"priority"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == 0 || req.Status == nil {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid card or status")
		return
	}

	_, err := h.cards.UpdateStatus(r.Context(), int64(req.ID), *req.Status, req.Priority)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeStatus(w, http.StatusOK, "success", "Gym card "+*req.Status)
}

func (h *Handler) SortGymCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SortBy string `json:"sort_by"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cards, err := h.cards.Sort(r.Context(), req.SortBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

func (h *Handler) SearchGymCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SearchBy   string `json:"search_by"`
		SearchTerm string `json:"search_term"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cards, err := h.cards.Search(r.Context(), req.SearchBy, req.SearchTerm)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

func (h *Handler) GetGymCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID flexID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == 0 {
		writeStatus(w, http.StatusNotFound, "error", "Gym card not found")
		return
	}

	card, err := h.cards.Get(r.Context(), int64(req.ID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) GetGymCardByStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cards, err := h.cards.ListByStatus(r.Context(), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

func (h *Handler) GetGymCardByPriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority int `json:"priority"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cards, err := h.cards.ListByPriority(r.Context(), req.Priority)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

func (h *Handler) GetGymCardByDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		if date, err = parseTimestamp(req.Date); err != nil {
			writeStatus(w, http.StatusBadRequest, "error", "Invalid date")
			return
		}
	}

	cards, err := h.cards.ListByDate(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gym_cards": cards})
}

func (h *Handler) MarkCardExpired(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID flexID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == 0 {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid card ID")
		return
	}

	if _, err := h.cards.MarkExpired(r.Context(), int64(req.ID)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeStatus(w, http.StatusOK, "success", "Card marked as expired")
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "card service is running at port " + os.Getenv("CARD_SERVICE_PORT"),
		"code":    200,
	})
}
