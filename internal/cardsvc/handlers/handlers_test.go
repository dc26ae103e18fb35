package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abenezer/gymcard-services/internal/cardsvc/broker"
	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/abenezer/gymcard-services/internal/cardsvc/service"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	"github.com/abenezer/gymcard-services/internal/cardsvc/ws"
)

type tested struct {
	router *chi.Mux
	store  *store.MemStore
	hub    *broker.Hub
}

func newTestServer(t *testing.T) *tested {
	t.Helper()

	mem := store.NewMemStore()
	hub := broker.NewHub()
	svc := service.NewCardService(mem, hub, nil, nil)

	r := chi.NewRouter()
	SetRoutes(r, NewHandler(svc), ws.NewGateway(hub))

	return &tested{router: r, store: mem, hub: hub}
}

func (ts *tested) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *tested) seed(t *testing.T, card models.GymCard) *models.GymCard {
	t.Helper()
	if card.Status == "" {
		card.Status = models.StatusActive
	}
	if card.ExpirationDate.IsZero() {
		card.ExpirationDate = time.Now().Add(24 * time.Hour)
	}
	_, err := ts.store.Create(context.Background(), &card)
	require.NoError(t, err)
	return &card
}

func TestCreateGymCard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/api/create_gym_card/", map[string]any{
		"title":           "Monthly pass",
		"description":     "Front desk",
		"expiration_date": time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"priority":        1,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Gym card created successfully", body["message"])
	assert.EqualValues(t, 1, body["id"])
}

func TestCreateGymCardMissingFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/api/create_gym_card/", map[string]any{"title": "only"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode(t, rec)["message"])
}

func TestCreateGymCardAcceptsBareIsoformat(t *testing.T) {
	ts := newTestServer(t)

	// The reader panels send datetime.isoformat() without a zone.
	rec := ts.post(t, "/api/create_gym_card/", map[string]any{
		"title":           "Panel card",
		"description":     "Created from Admin Panel",
		"expiration_date": "2026-10-01T12:30:00",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/api/update_gym_card/", `{"id": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decode(t, rec)["message"])
}

func TestUpdateGymCardStatus(t *testing.T) {
	ts := newTestServer(t)
	card := ts.seed(t, models.GymCard{Title: "x", IsExpired: true})

	rec := ts.post(t, "/api/update_gym_card/", map[string]any{
		"id":     card.ID,
		"status": "active",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gym card active", decode(t, rec)["message"])

	stored, err := ts.store.Get(context.Background(), card.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsExpired)
}

func TestUpdateGymCardStringID(t *testing.T) {
	ts := newTestServer(t)
	card := ts.seed(t, models.GymCard{Title: "x"})

	rec := ts.post(t, "/api/update_gym_card/", map[string]any{
		"id":     "1",
		"status": "suspended",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := ts.store.Get(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, stored.Status)
}

func TestUpdateGymCardNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/api/update_gym_card/", map[string]any{"id": 99, "status": "active"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Gym card not found", decode(t, rec)["message"])
}

func TestUpdateGymCardMissingStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, models.GymCard{Title: "x"})

	rec := ts.post(t, "/api/update_gym_card/", map[string]any{"id": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid card or status", decode(t, rec)["message"])
}

func TestDeleteGymCardReturnsSnapshot(t *testing.T) {
	ts := newTestServer(t)
	card := ts.seed(t, models.GymCard{Title: "doomed"})

	rec := ts.post(t, "/api/delete_gym_card/", map[string]any{"id": card.ID})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Gym card deleted", body["message"])
	deleted, ok := body["deleted_card"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doomed", deleted["Title"])
}

func TestGetGymCardsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, models.GymCard{Title: "a"})
	ts.seed(t, models.GymCard{Title: "b"})

	req := httptest.NewRequest(http.MethodGet, "/api/get_gym_cards/", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cards, ok := decode(t, rec)["gym_cards"].([]any)
	require.True(t, ok)
	assert.Len(t, cards, 2)
}

func TestGetGymCard(t *testing.T) {
	ts := newTestServer(t)
	card := ts.seed(t, models.GymCard{Title: "solo"})

	rec := ts.post(t, "/api/get_gym_card/", map[string]any{"id": card.ID})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "solo", decode(t, rec)["Title"])

	rec = ts.post(t, "/api/get_gym_card/", map[string]any{"id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchGymCardByTag(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, models.GymCard{Title: "member", RfidCardID: "14-65-65-16"})

	rec := ts.post(t, "/api/search_gym_card/", map[string]any{
		"search_by":   "rfid_card_id",
		"search_term": "14-65",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	cards, ok := decode(t, rec)["gym_cards"].([]any)
	require.True(t, ok)
	require.Len(t, cards, 1)
}

func TestSortGymCardBadParameter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/api/sort_gym_card/", map[string]any{"sort_by": "color"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid sort_by parameter", decode(t, rec)["message"])
}

func TestMarkCardExpired(t *testing.T) {
	ts := newTestServer(t)
	card := ts.seed(t, models.GymCard{Title: "x"})

	rec := ts.post(t, "/api/mark_card_expired/", map[string]any{"id": card.ID})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Card marked as expired", decode(t, rec)["message"])

	stored, err := ts.store.Get(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsExpired)
	assert.Equal(t, models.StatusDeactivated, stored.Status)
}

func TestGetGymCardByStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, models.GymCard{Title: "a", Status: models.StatusActive})
	ts.seed(t, models.GymCard{Title: "b", Status: models.StatusSuspended})

	rec := ts.post(t, "/api/get_gym_card_by_status/", map[string]any{"status": "suspended"})

	require.Equal(t, http.StatusOK, rec.Code)
	cards, ok := decode(t, rec)["gym_cards"].([]any)
	require.True(t, ok)
	require.Len(t, cards, 1)
}

func TestWriteFansOutToSubscribers(t *testing.T) {
	ts := newTestServer(t)
	sub := ts.hub.Subscribe()
	defer ts.hub.Unsubscribe(sub)

	ts.post(t, "/api/create_gym_card/", map[string]any{
		"title":           "broadcast me",
		"description":     "d",
		"expiration_date": time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	select {
	case frame := <-sub.C():
		var ev struct {
			Type string         `json:"type"`
			Card map[string]any `json:"card"`
		}
		require.NoError(t, json.Unmarshal(frame, &ev))
		assert.Equal(t, "card_update", ev.Type)
		assert.Equal(t, "broadcast me", ev.Card["Title"])
	case <-time.After(time.Second):
		t.Fatal("no event fanned out for the create")
	}
}
