package store

import (
	"context"
	"sync"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
)

// MemStore is an in-memory card table with the same contract as CardStore.
// Used by the test suites and for running the service without Postgres.
type MemStore struct {
	mu     sync.Mutex
	cards  map[int64]models.GymCard
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{cards: make(map[int64]models.GymCard)}
}

func (s *MemStore) Create(ctx context.Context, card *models.GymCard) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	card.ID = s.nextID
	if card.DateAdded.IsZero() {
		card.DateAdded = time.Now()
	}
	s.cards[card.ID] = *card

	return card.ID, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (*models.GymCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &card, nil
}

func (s *MemStore) List(ctx context.Context) ([]*models.GymCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := make([]*models.GymCard, 0, len(s.cards))
	for id := int64(1); id <= s.nextID; id++ {
		if card, ok := s.cards[id]; ok {
			c := card
			cards = append(cards, &c)
		}
	}
	return cards, nil
}

func (s *MemStore) GetByStatus(ctx context.Context, status string) ([]*models.GymCard, error) {
	return s.filter(func(c *models.GymCard) bool { return c.Status == status })
}

func (s *MemStore) GetByPriority(ctx context.Context, priority int) ([]*models.GymCard, error) {
	return s.filter(func(c *models.GymCard) bool { return c.Priority == priority })
}

func (s *MemStore) GetByDateAdded(ctx context.Context, date time.Time) ([]*models.GymCard, error) {
	y, m, d := date.Date()
	return s.filter(func(c *models.GymCard) bool {
		cy, cm, cd := c.DateAdded.Date()
		return cy == y && cm == m && cd == d
	})
}

func (s *MemStore) GetByRfidTag(ctx context.Context, tag string) (*models.GymCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := int64(1); id <= s.nextID; id++ {
		if card, ok := s.cards[id]; ok && card.RfidCardID == tag {
			c := card
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) Update(ctx context.Context, card *models.GymCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[card.ID]; !ok {
		return ErrNotFound
	}
	s.cards[card.ID] = *card
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return ErrNotFound
	}
	delete(s.cards, id)
	return nil
}

func (s *MemStore) filter(keep func(*models.GymCard) bool) ([]*models.GymCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cards []*models.GymCard
	for id := int64(1); id <= s.nextID; id++ {
		if card, ok := s.cards[id]; ok {
			c := card
			if keep(&c) {
				cards = append(cards, &c)
			}
		}
	}
	return cards, nil
}
