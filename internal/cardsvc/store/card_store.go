package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abenezer/gymcard-services/internal/cardsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the referenced card id does not exist.
var ErrNotFound = errors.New("gym card not found")

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

const cardColumns = `id, title, description, COALESCE(rfid_card_id, ''), date_added, expiration_date, status, priority, is_expired`

func scanCard(row pgx.Row) (*models.GymCard, error) {
	var card models.GymCard
	err := row.Scan(
		&card.ID,
		&card.Title,
		&card.Description,
		&card.RfidCardID,
		&card.DateAdded,
		&card.ExpirationDate,
		&card.Status,
		&card.Priority,
		&card.IsExpired,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *CardStore) Create(ctx context.Context, card *models.GymCard) (int64, error) {
	query := `
		INSERT INTO gym_cards (title, description, rfid_card_id, expiration_date, status, priority, is_expired)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING id, date_added
	`

	err := s.db.QueryRow(ctx, query,
		card.Title,
		card.Description,
		card.RfidCardID,
		card.ExpirationDate,
		card.Status,
		card.Priority,
		card.IsExpired,
	).Scan(&card.ID, &card.DateAdded)
	if err != nil {
		return 0, fmt.Errorf("failed to create gym card: %w", err)
	}

	return card.ID, nil
}

func (s *CardStore) Get(ctx context.Context, id int64) (*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards WHERE id = $1 LIMIT 1`

	card, err := scanCard(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gym card: %w", err)
	}

	return card, nil
}

func (s *CardStore) List(ctx context.Context) ([]*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards ORDER BY id`
	return s.queryCards(ctx, query)
}

func (s *CardStore) GetByStatus(ctx context.Context, status string) ([]*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards WHERE status = $1 ORDER BY id`
	return s.queryCards(ctx, query, status)
}

func (s *CardStore) GetByPriority(ctx context.Context, priority int) ([]*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards WHERE priority = $1 ORDER BY id`
	return s.queryCards(ctx, query, priority)
}

func (s *CardStore) GetByDateAdded(ctx context.Context, date time.Time) ([]*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards WHERE date_added::date = $1::date ORDER BY id`
	return s.queryCards(ctx, query, date)
}

// GetByRfidTag resolves a physical scan to its card. Returns ErrNotFound
// when no live card carries the tag.
func (s *CardStore) GetByRfidTag(ctx context.Context, tag string) (*models.GymCard, error) {
	query := `SELECT ` + cardColumns + ` FROM gym_cards WHERE rfid_card_id = $1 LIMIT 1`

	card, err := scanCard(s.db.QueryRow(ctx, query, tag))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gym card by rfid tag: %w", err)
	}

	return card, nil
}

func (s *CardStore) Update(ctx context.Context, card *models.GymCard) error {
	query := `
		UPDATE gym_cards
		SET title = $2, description = $3, rfid_card_id = NULLIF($4, ''),
		    expiration_date = $5, status = $6, priority = $7, is_expired = $8
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		card.ID,
		card.Title,
		card.Description,
		card.RfidCardID,
		card.ExpirationDate,
		card.Status,
		card.Priority,
		card.IsExpired,
	)
	if err != nil {
		return fmt.Errorf("failed to update gym card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *CardStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM gym_cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gym card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *CardStore) queryCards(ctx context.Context, query string, args ...any) ([]*models.GymCard, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gym cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.GymCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gym card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gym cards: %w", err)
	}

	return cards, nil
}
