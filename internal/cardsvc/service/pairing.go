package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	"github.com/abenezer/gymcard-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPairingTimeout bounds how long a pairing attempt listens for
	// a scan. The admin UI shows this as a countdown.
	DefaultPairingTimeout = 30 * time.Second

	connectAttempts       = 3
	defaultConnectBackoff = 500 * time.Millisecond
)

// ScanSource opens a stream of raw side-channel messages for one topic.
// The production implementation subscribes over NATS.
type ScanSource interface {
	Listen(topic string) (<-chan []byte, func(), error)
}

// CreateWithPairing persists a provisional card without an rfid tag and
// starts a pairing attempt against the reader side channel. The tag is
// patched in by the first scan; if none arrives within PairingTimeout the
// card is kept tagless and an rfid_timeout event tells subscribers so.
// If the side channel cannot be opened at all the provisional card is
// rolled back and the error surfaced to the caller. The rollback publishes
// no delete event even though the creation was announced, so subscribers
// may hold a stale reference to the provisional id; the original system
// behaves the same way and the gap is kept on purpose.
func (s *CardService) CreateWithPairing(ctx context.Context, card *models.GymCard) (*models.GymCard, time.Duration, error) {
	if card.Status == "" {
		card.Status = models.StatusActive
	}
	card.RfidCardID = ""

	if _, err := s.store.Create(ctx, card); err != nil {
		return nil, 0, err
	}

	s.hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: card})
	s.cache.Invalidate(ctx, card.ID)

	msgs, cancel, err := s.openScanChannel(comm.TopicPairScan)
	if err != nil {
		// Rollback is silent: no delete event goes out for the
		// provisional card.
		if delErr := s.store.Delete(ctx, card.ID); delErr != nil {
			log.Errorf("failed to roll back provisional card %d: %v", card.ID, delErr)
		}
		s.cache.Invalidate(ctx, card.ID)
		return nil, 0, err
	}

	go s.runPairing(card.ID, msgs, cancel)

	return card, s.PairingTimeout, nil
}

// openScanChannel establishes the side-channel subscription, retrying a
// bounded number of times before declaring the link dead.
func (s *CardService) openScanChannel(topic string) (<-chan []byte, func(), error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		msgs, cancel, err := s.scans.Listen(topic)
		if err == nil {
			return msgs, cancel, nil
		}
		lastErr = err
		log.Warnf("rfid side channel attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(s.ConnectBackoff)
		}
	}
	return nil, nil, fmt.Errorf("rfid side channel unavailable after %d attempts: %w", connectAttempts, lastErr)
}

// runPairing is the LISTENING state: first valid scan wins, the timer
// fires otherwise, never both.
func (s *CardService) runPairing(id int64, msgs <-chan []byte, cancel func()) {
	defer cancel()

	timer := time.NewTimer(s.PairingTimeout)
	defer timer.Stop()

	for {
		select {
		case raw, ok := <-msgs:
			if !ok {
				log.Warnf("scan channel closed during pairing of card %d", id)
				return
			}

			var scan comm.ScanMessage
			if err := json.Unmarshal(raw, &scan); err != nil || scan.CardID == "" {
				// Reader bridges ping the topic with non-scan traffic.
				log.Debugf("ignoring non-scan message on pairing channel: %q", raw)
				continue
			}

			if s.completePairing(id, scan.CardID) {
				return
			}

		case <-timer.C:
			log.Infof("pairing for card %d timed out, card kept without a tag", id)
			s.hub.Publish(comm.Event{Type: comm.EventRfidTimeout, Card: comm.IDPayload{ID: id}})
			return
		}
	}
}

// completePairing patches the scanned tag onto the provisional card.
// A tag already bound elsewhere leaves the attempt listening for another
// scan; any other failure ends the attempt.
func (s *CardService) completePairing(id int64, tag string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if other, err := s.store.GetByRfidTag(ctx, tag); err == nil && other.ID != id {
		log.Warnf("scanned tag %s already bound to card %d, waiting for another scan", tag, other.ID)
		return false
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Errorf("tag lookup failed during pairing of card %d: %v", id, err)
		return true
	}

	card, err := s.store.Get(ctx, id)
	if err != nil {
		log.Errorf("pairing target card %d vanished: %v", id, err)
		return true
	}

	card.RfidCardID = tag
	if err := s.store.Update(ctx, card); err != nil {
		log.Errorf("failed to save paired tag on card %d: %v", id, err)
		return true
	}

	s.hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: card})
	s.cache.Invalidate(ctx, id)

	log.Infof("card %d paired with rfid tag %s", id, tag)
	return true
}
