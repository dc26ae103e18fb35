package handlers

import (
	"github.com/abenezer/gymcard-services/internal/cardsvc/ws"
	"github.com/go-chi/chi"
)

// SetRoutes mirrors the original dashboard API paths.
func SetRoutes(r *chi.Mux, h *Handler, gw *ws.Gateway) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/get_gym_cards/", h.GetGymCards)
		r.Post("/get_gym_cards/", h.GetGymCards)
		r.Post("/create_gym_card/", h.CreateGymCard)
		r.Post("/create_gym_card_with_page/", h.CreateGymCardWithPage)
		r.Post("/delete_gym_card/", h.DeleteGymCard)
		r.Post("/update_gym_card/", h.UpdateGymCard)
		r.Post("/sort_gym_card/", h.SortGymCard)
		r.Post("/search_gym_card/", h.SearchGymCard)
		r.Post("/get_gym_card/", h.GetGymCard)
		r.Post("/get_gym_card_by_id/", h.GetGymCard)
		r.Post("/get_gym_card_by_status/", h.GetGymCardByStatus)
		r.Post("/get_gym_card_by_priority/", h.GetGymCardByPriority)
		r.Post("/get_gym_card_by_date/", h.GetGymCardByDate)
		r.Post("/mark_card_expired/", h.MarkCardExpired)
	})

	r.Get("/ws/gym_cards", gw.HandleWebSocket)
	r.Get("/health", h.HealthHandler)
}
