package scan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/abenezer/gymcard-services/internal/cardsvc/service"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	"github.com/abenezer/gymcard-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Consumer turns check-in scans from the reader bridge into status toggles.
type Consumer struct {
	Conn  *nats.Conn
	Cards *service.CardService
}

func NewConsumer(conn *nats.Conn, cards *service.CardService) *Consumer {
	return &Consumer{Conn: conn, Cards: cards}
}

func (c *Consumer) Subscribe() (*nats.Subscription, error) {
	return c.Conn.Subscribe(comm.TopicCheckinScan, c.handleScan)
}

func (c *Consumer) handleScan(m *nats.Msg) {
	var scan comm.ScanMessage
	if err := json.Unmarshal(m.Data, &scan); err != nil || scan.CardID == "" {
		log.Warnf("ignoring malformed check-in scan: %q", m.Data)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	card, err := c.Cards.ToggleCheckIn(ctx, scan.CardID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warnf("check-in scan for unknown tag %s", scan.CardID)
	case errors.Is(err, service.ErrInactiveCard):
		log.Infof("check-in denied for card %d: inactive", card.ID)
	case err != nil:
		log.Errorf("check-in toggle failed for tag %s: %v", scan.CardID, err)
	default:
		if card.Status == models.StatusIn {
			log.Infof("card %d checked in", card.ID)
		} else {
			log.Infof("card %d checked out", card.ID)
		}
	}
}
