package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// cardTTL keeps entries just long enough to absorb read bursts from the
// dashboard; writes invalidate sooner.
const cardTTL = 5 * time.Second

const KeyAll = "gym_cards:all"

func KeyCard(id int64) string {
	return fmt.Sprintf("gym_cards:id:%d", id)
}

// Cache is a short-TTL read-through cache in front of the card store.
// A nil *Cache is valid and disables caching, so the service runs with
// or without a Redis alongside it.
type Cache struct {
	rdb *redis.Client
}

// Connect builds the cache from REDIS_URL. An empty REDIS_URL disables
// caching rather than failing the service.
func Connect() (*Cache, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

func (c *Cache) GetCard(ctx context.Context, id int64) (*models.GymCard, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, KeyCard(id)).Bytes()
	if err != nil {
		return nil, false
	}

	var card models.GymCard
	if err := json.Unmarshal(raw, &card); err != nil {
		log.Warnf("bad cache entry for card %d: %v", id, err)
		return nil, false
	}
	return &card, true
}

func (c *Cache) SetCard(ctx context.Context, card *models.GymCard) {
	if c == nil || card == nil {
		return
	}

	raw, err := json.Marshal(card)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, KeyCard(card.ID), raw, cardTTL).Err(); err != nil {
		log.Warnf("failed to cache card %d: %v", card.ID, err)
	}
}

func (c *Cache) GetCards(ctx context.Context) ([]*models.GymCard, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, KeyAll).Bytes()
	if err != nil {
		return nil, false
	}

	var cards []*models.GymCard
	if err := json.Unmarshal(raw, &cards); err != nil {
		log.Warnf("bad cache entry for card listing: %v", err)
		return nil, false
	}
	return cards, true
}

func (c *Cache) SetCards(ctx context.Context, cards []*models.GymCard) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(cards)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, KeyAll, raw, cardTTL).Err(); err != nil {
		log.Warnf("failed to cache card listing: %v", err)
	}
}

// Invalidate drops the entry for one card together with the listing key.
// Called after every write that touches the card.
func (c *Cache) Invalidate(ctx context.Context, id int64) {
	if c == nil {
		return
	}

	if err := c.rdb.Del(ctx, KeyCard(id), KeyAll).Err(); err != nil {
		log.Warnf("failed to invalidate cache for card %d: %v", id, err)
	}
}

func (c *Cache) Close() {
	if c == nil {
		return
	}
	_ = c.rdb.Close()
}
