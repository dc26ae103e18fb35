package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/cache"
	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	"github.com/abenezer/gymcard-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateTag means the rfid tag is already bound to a live card.
	ErrDuplicateTag = errors.New("rfid tag already assigned to another card")
	// ErrInactiveCard means a scanned card was denied check-in.
	ErrInactiveCard = errors.New("access denied: inactive card")
	// ErrInvalidSort means an unknown sort_by value.
	ErrInvalidSort = errors.New("invalid sort_by parameter")
)

// CardStore is the keyed table the service mutates. The pgx store is the
// production implementation.
type CardStore interface {
	Create(ctx context.Context, card *models.GymCard) (int64, error)
	Get(ctx context.Context, id int64) (*models.GymCard, error)
	List(ctx context.Context) ([]*models.GymCard, error)
	GetByStatus(ctx context.Context, status string) ([]*models.GymCard, error)
	GetByPriority(ctx context.Context, priority int) ([]*models.GymCard, error)
	GetByDateAdded(ctx context.Context, date time.Time) ([]*models.GymCard, error)
	GetByRfidTag(ctx context.Context, tag string) (*models.GymCard, error)
	Update(ctx context.Context, card *models.GymCard) error
	Delete(ctx context.Context, id int64) error
}

// Publisher receives lifecycle events after the causing write is committed.
type Publisher interface {
	Publish(ev comm.Event)
}

type CardService struct {
	store CardStore
	hub   Publisher
	cache *cache.Cache
	scans ScanSource

	// Pairing knobs, overridable before serving starts.
	PairingTimeout time.Duration
	ConnectBackoff time.Duration
}

func NewCardService(st CardStore, hub Publisher, c *cache.Cache, scans ScanSource) *CardService {
	return &CardService{
		store:          st,
		hub:            hub,
		cache:          c,
		scans:          scans,
		PairingTimeout: DefaultPairingTimeout,
		ConnectBackoff: defaultConnectBackoff,
	}
}

// Create persists a new card and announces it to the group.
func (s *CardService) Create(ctx context.Context, card *models.GymCard) (*models.GymCard, error) {
	if card.Status == "" {
		card.Status = models.StatusActive
	}

	if card.RfidCardID != "" {
		if _, err := s.store.GetByRfidTag(ctx, card.RfidCardID); err == nil {
			return nil, ErrDuplicateTag
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if _, err := s.store.Create(ctx, card); err != nil {
		return nil, err
	}

	s.hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: card})
	s.cache.Invalidate(ctx, card.ID)

	return card, nil
}

// Get returns one card, running the expiration check on the way out.
func (s *CardService) Get(ctx context.Context, id int64) (*models.GymCard, error) {
	if card, ok := s.cache.GetCard(ctx, id); ok {
		return card, nil
	}

	card, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.evaluateExpiration(ctx, card); err != nil {
		return nil, err
	}

	s.cache.SetCard(ctx, card)
	return card, nil
}

// List returns every card. Each record passes through the expiration check
// as it is read; nothing expires in bulk or in the background.
func (s *CardService) List(ctx context.Context) ([]*models.GymCard, error) {
	if cards, ok := s.cache.GetCards(ctx); ok {
		return cards, nil
	}

	cards, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, card := range cards {
		if err := s.evaluateExpiration(ctx, card); err != nil {
			return nil, err
		}
	}

	s.cache.SetCards(ctx, cards)
	return cards, nil
}

func (s *CardService) ListByStatus(ctx context.Context, status string) ([]*models.GymCard, error) {
	return s.store.GetByStatus(ctx, status)
}

func (s *CardService) ListByPriority(ctx context.Context, priority int) ([]*models.GymCard, error) {
	return s.store.GetByPriority(ctx, priority)
}

func (s *CardService) ListByDate(ctx context.Context, date time.Time) ([]*models.GymCard, error) {
	return s.store.GetByDateAdded(ctx, date)
}

// Sort returns all cards ordered by date, status or priority.
func (s *CardService) Sort(ctx context.Context, sortBy string) ([]*models.GymCard, error) {
	cards, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	switch sortBy {
	case "date":
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].DateAdded.Before(cards[j].DateAdded) })
	case "status":
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].Status < cards[j].Status })
	case "priority":
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].Priority < cards[j].Priority })
	default:
		return nil, ErrInvalidSort
	}

	return cards, nil
}

// Search does a substring match of term against one named field.
// rfid_card_id search is what the reader panels use to resolve a scan.
func (s *CardService) Search(ctx context.Context, searchBy, term string) ([]*models.GymCard, error) {
	cards, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []*models.GymCard
	for _, card := range cards {
		value, ok := searchField(card, searchBy)
		if ok && strings.Contains(value, term) {
			results = append(results, card)
		}
	}

	return results, nil
}

func searchField(card *models.GymCard, field string) (string, bool) {
	switch field {
	case "Title":
		return card.Title, true
	case "Description":
		return card.Description, true
	case "Status":
		return card.Status, true
	case "rfid_card_id":
		return card.RfidCardID, true
	default:
		return "", false
	}
}

// UpdateStatus drives the lifecycle state machine. Moving to active clears
// the expired flag, moving to expired or deactivated sets it, any other
// target is written verbatim and leaves the flag alone. A non-nil priority
// rides along on the same write.
func (s *CardService) UpdateStatus(ctx context.Context, id int64, status string, priority *int) (*models.GymCard, error) {
	card, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case models.StatusActive:
		card.Status = status
		card.IsExpired = false
	case models.StatusExpired, models.StatusDeactivated:
		card.Status = status
		card.IsExpired = true
	default:
		card.Status = status
	}

	if priority != nil {
		card.Priority = *priority
	}

	if err := s.store.Update(ctx, card); err != nil {
		return nil, err
	}

	s.hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: card})
	s.cache.Invalidate(ctx, id)

	return card, nil
}

// Delete removes the card and announces the deletion. The returned snapshot
// is what the card looked like just before removal.
func (s *CardService) Delete(ctx context.Context, id int64) (*models.GymCard, error) {
	card, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: id}})
	s.cache.Invalidate(ctx, id)

	return card, nil
}

// MarkExpired forces a card into the expired state regardless of deadline.
func (s *CardService) MarkExpired(ctx context.Context, id int64) (*models.GymCard, error) {
	card, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	card.Status = models.StatusDeactivated
	card.IsExpired = true

	if err := s.store.Update(ctx, card); err != nil {
		return nil, err
	}

	s.hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: card})
	s.cache.Invalidate(ctx, id)

	return card, nil
}

// ToggleCheckIn handles a physical scan of a known tag: admin cards are
// routed away, inactive cards are denied, everything else flips between
// active and in.
func (s *CardService) ToggleCheckIn(ctx context.Context, tag string) (*models.GymCard, error) {
	card, err := s.store.GetByRfidTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	if card.Priority == models.AdminPriority {
		log.Infof("admin card %d scanned, skipping check-in", card.ID)
		return card, nil
	}
	if card.Status == models.StatusInactive {
		return card, ErrInactiveCard
	}

	target := models.StatusActive
	if card.Status == models.StatusActive {
		target = models.StatusIn
	}

	return s.UpdateStatus(ctx, card.ID, target, nil)
}

// evaluateExpiration flips an overdue card as it is read. The status
// sentinel and the flag are persisted in the same call that returns the
// record; no event is published for this passive transition.
func (s *CardService) evaluateExpiration(ctx context.Context, card *models.GymCard) error {
	if card.IsExpired || !time.Now().After(card.ExpirationDate) {
		return nil
	}

	card.Status = models.StatusDeactivated
	card.IsExpired = true

	if err := s.store.Update(ctx, card); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, card.ID)
	return nil
}
