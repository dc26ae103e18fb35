package models

import "time"

// Card statuses. Everything outside this set is stored verbatim;
// "in" is only ever written by the check-in toggle.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusExpired     = "expired"
	StatusDeactivated = "deactivated"
	StatusSuspended   = "suspended"
	StatusIn          = "in"
)

// AdminPriority routes a scanned card to the admin flow instead of check-in.
const AdminPriority = 0

type GymCard struct {
	ID             int64     `json:"id"` // Primary key
	Title          string    `json:"Title"`
	Description    string    `json:"Description"`
	RfidCardID     string    `json:"rfid_card_id,omitempty"` // set once pairing completes
	DateAdded      time.Time `json:"DateAdded"`
	ExpirationDate time.Time `json:"ExpirationDate"`
	Status         string    `json:"Status"`
	Priority       int       `json:"Priority"`
	IsExpired      bool      `json:"IsExpired"`
}
